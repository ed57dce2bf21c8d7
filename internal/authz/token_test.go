package authz

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	t.Setenv(secretEnvVariable, "test-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	in := AuthorityProfile{
		ActorID:        "courier-7",
		Level:          LevelCourier,
		AssignedPrefix: "CS01A",
		Status:         StatusActive,
	}
	token, err := GenerateToken(in, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	out, err := ParseToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Fatalf("profile mismatch: %#v != %#v", out, in)
	}
}

func TestTokenRejectsTampering(t *testing.T) {
	t.Setenv(secretEnvVariable, "test-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	token, err := GenerateToken(AuthorityProfile{
		ActorID:        "courier-7",
		Level:          LevelCourier,
		AssignedPrefix: "CS01A",
		Status:         StatusActive,
	}, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseToken(token + "x"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := ParseToken(""); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
}

func TestTokenMissingSecret(t *testing.T) {
	t.Setenv(secretEnvVariable, "")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	_, err := GenerateToken(AuthorityProfile{
		ActorID:        "courier-7",
		Level:          LevelCourier,
		AssignedPrefix: "CS01A",
		Status:         StatusActive,
	}, time.Minute)
	if err != errMissingSecret {
		t.Fatalf("expected missing-secret error, got %v", err)
	}
}
