package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateDescription(t *testing.T) {
	tests := []struct {
		name    string
		desc    string
		wantErr bool
	}{
		{"single byte", "a", false},
		{"ten bytes", "abcdefghij", false},
		{"empty", "", true},
		{"eleven bytes", "abcdefghijk", true},
		{"multibyte over limit", strings.Repeat("é", 6), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDescription(tt.desc)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDescription) {
					t.Fatalf("expected ErrInvalidDescription, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateAmount(t *testing.T) {
	if err := ValidateAmount(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateAmount(0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := ValidateAmount(-5); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := ValidateAmount(MaxAmount); err != nil {
		t.Fatalf("unexpected error at MaxAmount: %v", err)
	}
	if err := ValidateAmount(MaxAmount + 1); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount above MaxAmount, got %v", err)
	}
}
