package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestValidatePIN(t *testing.T) {
	tests := []struct {
		pin     string
		wantErr bool
	}{
		{"1234", false},
		{"12345678", false},
		{"123", true},
		{"123456789", true},
		{"12a4", true},
		{"", true},
		{"12 34", true},
	}

	for _, tt := range tests {
		t.Run(tt.pin, func(t *testing.T) {
			err := ValidatePIN(tt.pin)
			if tt.wantErr && !errors.Is(err, ErrWeakPIN) {
				t.Errorf("ValidatePIN(%q) = %v, want ErrWeakPIN", tt.pin, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidatePIN(%q) = %v, want nil", tt.pin, err)
			}
		})
	}
}

func TestHashAndComparePIN(t *testing.T) {
	hash, err := HashPIN("1234", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPIN failed: %v", err)
	}

	if !ComparePIN(hash, "1234") {
		t.Error("Expected matching PIN to compare true")
	}
	if ComparePIN(hash, "0000") {
		t.Error("Expected wrong PIN to compare false")
	}
	if ComparePIN(hash, "1234 ") {
		t.Error("Expected PIN comparison to be exact")
	}
	if ComparePIN(hash, "1234\x001234") {
		t.Error("Expected candidate with NUL byte to compare false")
	}

	long := strings.Repeat("7", 72)
	longHash, err := HashPIN(long, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPIN failed: %v", err)
	}
	if ComparePIN(longHash, long+"extra") {
		t.Error("Expected candidate past 72 bytes to compare false")
	}
}

func TestJWTManager(t *testing.T) {
	manager := NewJWTManager("test-secret-key-32-bytes-long!!!", time.Hour)

	t.Run("Generate and Validate round trip", func(t *testing.T) {
		token, err := manager.Generate("device-1")
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}

		claims, err := manager.Validate(token)
		if err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		if claims.DeviceID != "device-1" {
			t.Errorf("DeviceID: got %s, want device-1", claims.DeviceID)
		}
	})

	t.Run("Validate rejects token signed with another secret", func(t *testing.T) {
		other := NewJWTManager("another-secret", time.Hour)
		token, err := other.Generate("device-1")
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}

		if _, err := manager.Validate(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("Validate rejects expired token", func(t *testing.T) {
		expired := NewJWTManager("test-secret-key-32-bytes-long!!!", -time.Minute)
		token, err := expired.Generate("device-1")
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}

		if _, err := manager.Validate(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("Generate requires device id", func(t *testing.T) {
		if _, err := manager.Generate(""); err == nil {
			t.Error("Expected error for empty device id")
		}
	})
}
