package outlet

import "testing"

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		ip        string
		token     string
		want      bool
		ipErrs    int
		tokenErrs int
	}{
		{"valid", "192.168.1.40", "0123456789abcdef0123456789abcdef", true, 0, 0},
		{"valid zeros", "0.0.0.0", "00000000000000000000000000000000", true, 0, 0},
		{"hostname", "plug.local", validToken, false, 1, 0},
		{"octet out of range", "192.168.1.256", validToken, false, 1, 0},
		{"ipv6", "fe80::1", validToken, false, 1, 0},
		{"ipv6 mapped ipv4", "::ffff:192.168.1.10", validToken, false, 1, 0},
		{"ipv6 mapped ipv4 expanded", "0:0:0:0:0:ffff:c0a8:010a", validToken, false, 1, 0},
		{"empty ip", "", validToken, false, 1, 0},
		{"token too short", validIP, "0123456789abcdef", false, 0, 1},
		{"token too long", validIP, validToken + "00", false, 0, 1},
		{"token not hex", validIP, "0123456789abcdef0123456789abcdeg", false, 0, 1},
		{"empty token", validIP, "", false, 0, 1},
		{"both invalid", "nope", "nope", false, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &recordingLogger{}

			if got := Validate(log, tt.ip, tt.token); got != tt.want {
				t.Errorf("Validate(%q, %q) = %v, want %v", tt.ip, tt.token, got, tt.want)
			}
			if n := log.count("error", "The given ip address is not valid"); n != tt.ipErrs {
				t.Errorf("ip errors = %d, want %d", n, tt.ipErrs)
			}
			if n := log.count("error", "The given token is not valid"); n != tt.tokenErrs {
				t.Errorf("token errors = %d, want %d", n, tt.tokenErrs)
			}
			if tt.want && len(log.entries) != 0 {
				t.Errorf("valid identity logged %+v, want nothing", log.entries)
			}
		})
	}
}
