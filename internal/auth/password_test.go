package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestPasswordHash(t *testing.T) {
	const password = "plug-admin-passphrase"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	fields := strings.Split(hash, "$")
	if len(fields) != 6 || fields[1] != "argon2id" || fields[2] != "v=19" || fields[3] != "m=65536,t=3,p=1" {
		t.Fatalf("HashPassword() = %q, want $argon2id$v=19$m=65536,t=3,p=1$salt$key", hash)
	}

	for _, tt := range []struct {
		candidate string
		want      bool
	}{
		{password, true},
		{"Plug-admin-passphrase", false},
		{"", false},
	} {
		ok, err := VerifyPassword(tt.candidate, hash)
		if err != nil {
			t.Fatalf("VerifyPassword(%q) error = %v", tt.candidate, err)
		}
		if ok != tt.want {
			t.Errorf("VerifyPassword(%q) = %v, want %v", tt.candidate, ok, tt.want)
		}
	}

	again, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if again == hash {
		t.Error("equal hashes for one password: salt is not random")
	}
}

func TestDecodePHC(t *testing.T) {
	p, err := decodePHC("$argon2id$v=19$m=8,t=1,p=1$c2FsdHNhbHQ$AAAA")
	if err != nil {
		t.Fatalf("decodePHC() error = %v", err)
	}
	if p.memory != 8 || p.time != 1 || p.threads != 1 || string(p.salt) != "saltsalt" || len(p.hash) != 3 {
		t.Errorf("decodePHC() = %+v", p)
	}
}

func TestVerifyPassword_Malformed(t *testing.T) {
	tests := map[string]string{
		"empty":           "",
		"plain text":      "hunter2",
		"bcrypt":          "$2a$10$abcdefghijklmnopqrstuv",
		"missing key":     "$argon2id$v=19$m=65536,t=3,p=1$c2FsdA",
		"old version":     "$argon2id$v=16$m=65536,t=3,p=1$c2FsdA$aGFzaA",
		"bad params":      "$argon2id$v=19$memory$c2FsdA$aGFzaA",
		"bad salt":        "$argon2id$v=19$m=65536,t=3,p=1$!!!$aGFzaA",
		"empty key":       "$argon2id$v=19$m=65536,t=3,p=1$c2FsdA$",
		"leading garbage": "x$argon2id$v=19$m=65536,t=3,p=1$c2FsdA$aGFzaA",
	}

	for name, hash := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := VerifyPassword("password", hash); !errors.Is(err, ErrHashFormat) {
				t.Errorf("VerifyPassword() error = %v, want ErrHashFormat", err)
			}
		})
	}
}
