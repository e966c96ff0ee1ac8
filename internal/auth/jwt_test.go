package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier("test-secret", time.Hour)

	token, err := v.Mint("user-42")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	subject, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if subject != "user-42" {
		t.Errorf("subject = %q, want %q", subject, "user-42")
	}
}

func TestVerifier_WrongSecret(t *testing.T) {
	token, err := NewVerifier("secret-a", time.Hour).Mint("user-42")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	if _, err := NewVerifier("secret-b", time.Hour).Verify(token); !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("Verify with wrong secret = %v, want ErrInvalidCredential", err)
	}
}

func TestVerifier_Expired(t *testing.T) {
	v := NewVerifier("test-secret", -time.Minute)

	token, err := v.Mint("user-42")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	if _, err := v.Verify(token); !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("Verify of expired token = %v, want ErrInvalidCredential", err)
	}
}

func TestVerifier_MissingSubject(t *testing.T) {
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := NewVerifier("test-secret", time.Hour).Verify(token); !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("Verify without subject = %v, want ErrInvalidCredential", err)
	}
}

func TestVerifier_RejectsUnsignedToken(t *testing.T) {
	claims := jwt.RegisteredClaims{Subject: "user-42"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := NewVerifier("test-secret", time.Hour).Verify(token); !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("Verify of alg=none token = %v, want ErrInvalidCredential", err)
	}
}

func TestVerifier_Garbage(t *testing.T) {
	if _, err := NewVerifier("test-secret", time.Hour).Verify("not-a-token"); !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("Verify of garbage = %v, want ErrInvalidCredential", err)
	}
}
