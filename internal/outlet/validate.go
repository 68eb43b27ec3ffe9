package outlet

import (
	"net/netip"

	"github.com/go-playground/validator/v10"

	"github.com/nerrad567/miplug-bridge/internal/accessory"
)

// formatValidator is safe for concurrent use.
var formatValidator = validator.New()

// Validate checks that address is an IPv4 literal and token is MD5 shaped
// (32 lowercase hex characters). Each failing check logs its own error.
// It reports true only if both pass.
func Validate(log accessory.Logger, address, token string) bool {
	validIP := formatValidator.Var(address, "required,ipv4") == nil && isDottedQuad(address)
	validToken := formatValidator.Var(token, "required,md5") == nil

	if !validIP {
		log.Error("The given ip address is not valid")
	}
	if !validToken {
		log.Error("The given token is not valid")
	}
	return validIP && validToken
}

// isDottedQuad rejects the IPv4-mapped IPv6 forms the ipv4 tag lets through.
func isDottedQuad(address string) bool {
	addr, err := netip.ParseAddr(address)
	return err == nil && addr.Is4()
}
