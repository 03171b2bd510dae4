package auth

import (
	"testing"
	"time"
)

func TestJWTRoundTrip(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)

	token, err := manager.GenerateAccessToken(UserClaims{UserID: "u1", Email: "a@b.com"})
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	claims, err := manager.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if claims.UserID != "u1" || claims.Email != "a@b.com" {
		t.Errorf("Claims mismatch: %+v", claims)
	}
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	manager := NewJWTManager("secret-a", time.Hour)
	other := NewJWTManager("secret-b", time.Hour)

	token, err := manager.GenerateAccessToken(UserClaims{UserID: "u1"})
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := other.ValidateAccessToken(token); err == nil {
		t.Error("Expected token signed with a different secret to be rejected")
	}
}

func TestJWTRejectsExpired(t *testing.T) {
	manager := NewJWTManager("test-secret", -time.Minute)

	token, err := manager.GenerateAccessToken(UserClaims{UserID: "u1"})
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := manager.ValidateAccessToken(token); err != ErrTokenExpired {
		t.Errorf("Expected ErrTokenExpired, got %v", err)
	}
}

func TestPasswordHashAndVerify(t *testing.T) {
	pm := NewPasswordManager(4, 8) // low cost for test speed

	hash, err := pm.HashPassword("Sup3rSecret")
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	if !pm.VerifyPassword("Sup3rSecret", hash) {
		t.Error("Expected correct password to verify")
	}
	if pm.VerifyPassword("wrong", hash) {
		t.Error("Expected wrong password to fail")
	}
}

func TestPasswordStrength(t *testing.T) {
	pm := NewPasswordManager(4, 8)

	if err := pm.ValidatePasswordStrength("Sup3rSecret"); err != nil {
		t.Errorf("Expected strong password to pass, got %v", err)
	}
	if err := pm.ValidatePasswordStrength("short1A"); err == nil {
		t.Error("Expected short password to fail")
	}
	if err := pm.ValidatePasswordStrength("alllowercase1"); err == nil {
		t.Error("Expected password without uppercase to fail")
	}
}

func TestHashAgentKeyDeterministic(t *testing.T) {
	a := HashAgentKey("tga_abc123")
	b := HashAgentKey("tga_abc123")
	c := HashAgentKey("tga_other")

	if a != b {
		t.Error("Expected identical keys to hash identically")
	}
	if a == c {
		t.Error("Expected different keys to hash differently")
	}
	if len(a) != 64 {
		t.Errorf("Expected 64 hex characters, got %d", len(a))
	}
}
