package security_test

import (
	"testing"

	"github.com/userhub/userhub/internal/security"
)

func TestPasswordRoundtrip(t *testing.T) {
	hash, err := security.HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	if hash == "correct horse battery" {
		t.Fatalf("password stored in the clear")
	}

	if err := security.CheckPassword(hash, "correct horse battery"); err != nil {
		t.Fatalf("check: %v", err)
	}

	if err := security.CheckPassword(hash, "wrong password"); err == nil {
		t.Fatalf("wrong password accepted")
	}
}
