package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// 44-character base64 string, as produced by `openssl rand -base64 32`
const testSecret = "wJ6Qk8Qn1v9Qw1Zb2l8Qk9J3p6Qk8Qn1v9Qw1Zb2l8Qk="

func TestGenerateAccessToken(t *testing.T) {
	svc := NewJWTService(testSecret)

	token, err := svc.GenerateAccessToken("viewer-123")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.ViewerID() != "viewer-123" {
		t.Errorf("ViewerID = %q, want viewer-123", claims.ViewerID())
	}
	if claims.Type != TokenTypeAccess {
		t.Errorf("Type = %q, want access", claims.Type)
	}
}

func TestGenerateAccessToken_EmptyViewerID(t *testing.T) {
	svc := NewJWTService(testSecret)
	if _, err := svc.GenerateAccessToken(""); err != ErrEmptyViewerID {
		t.Errorf("error = %v, want ErrEmptyViewerID", err)
	}
}

func TestGenerateRefreshToken(t *testing.T) {
	svc := NewJWTService(testSecret)

	token, err := svc.GenerateRefreshToken("viewer-123")
	if err != nil {
		t.Fatalf("GenerateRefreshToken failed: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.Type != TokenTypeRefresh {
		t.Errorf("Type = %q, want refresh", claims.Type)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	svc := NewJWTService(testSecret)
	other := NewJWTService("completely-different-secret-value-here")

	token, err := svc.GenerateAccessToken("viewer-123")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}
	if _, err := other.ValidateToken(token); err != ErrInvalidToken {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}

func TestValidateToken_Expired(t *testing.T) {
	svc := NewJWTService(testSecret).WithLeeway(0)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "viewer-123",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		Type: TokenTypeAccess,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	if _, err := svc.ValidateToken(token); err != ErrExpiredToken {
		t.Errorf("error = %v, want ErrExpiredToken", err)
	}
}

func TestValidateToken_ExpiredWithinLeeway(t *testing.T) {
	svc := NewJWTService(testSecret)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "viewer-123",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-10 * time.Second)),
		},
		Type: TokenTypeAccess,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	if _, err := svc.ValidateToken(token); err != nil {
		t.Errorf("token expired inside leeway should validate, got %v", err)
	}
}

func TestValidateToken_RejectsNoneAlgorithm(t *testing.T) {
	svc := NewJWTService(testSecret)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "viewer-123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Type: TokenTypeAccess,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	if _, err := svc.ValidateToken(token); err != ErrInvalidToken {
		t.Errorf("error = %v, want ErrInvalidToken for alg=none", err)
	}
}

func TestValidateToken_SecretRotation(t *testing.T) {
	oldSvc := NewJWTService("old-secret-old-secret-old-secret-ok")
	token, err := oldSvc.GenerateAccessToken("viewer-123")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	// After rotation the old token still validates via previousSecret.
	rotated := NewJWTServiceWithRotation(testSecret, "old-secret-old-secret-old-secret-ok")
	claims, err := rotated.ValidateToken(token)
	if err != nil {
		t.Fatalf("rotated service rejected old token: %v", err)
	}
	if claims.ViewerID() != "viewer-123" {
		t.Errorf("ViewerID = %q", claims.ViewerID())
	}

	// New tokens are signed with the current secret.
	newToken, err := rotated.GenerateAccessToken("viewer-456")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}
	if _, err := NewJWTService(testSecret).ValidateToken(newToken); err != nil {
		t.Errorf("new token should validate with current secret alone: %v", err)
	}

	// Without rotation configured the old token is rejected.
	if _, err := NewJWTService(testSecret).ValidateToken(token); err == nil {
		t.Error("old token should fail without previousSecret")
	}
}
