package auth

import (
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Errorf("hash = %q, want argon2id encoding", hash)
	}
	if strings.Contains(hash, "correct horse") {
		t.Error("hash contains the plaintext")
	}

	if !VerifyPassword("correct horse battery staple", hash) {
		t.Error("VerifyPassword() rejected the correct password")
	}
	if VerifyPassword("wrong password", hash) {
		t.Error("VerifyPassword() accepted a wrong password")
	}
}

func TestHashPasswordUniqueSalts(t *testing.T) {
	h1, err := HashPassword("same password")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	h2, err := HashPassword("same password")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same password are identical; salt not random")
	}
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"not argon2", "$bcrypt$whatever"},
		{"truncated", "$argon2id$v=19$m=65536"},
		{"bad base64", "$argon2id$v=19$m=65536,t=1,p=4$!!!$!!!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if VerifyPassword("anything", tt.hash) {
				t.Errorf("VerifyPassword() accepted malformed hash %q", tt.hash)
			}
		})
	}
}
