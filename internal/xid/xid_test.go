package xid

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewIsPrefixedAndUnique(t *testing.T) {
	a := New("sale")
	b := New("sale")
	if !strings.HasPrefix(a, "sale-") {
		t.Fatalf("expected sale- prefix, got %q", a)
	}
	if a == b {
		t.Fatalf("expected unique ids, got %q twice", a)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(a, "sale-")); err != nil {
		t.Fatalf("expected uuid suffix: %v", err)
	}
}

func TestKeyParsesAsUUID(t *testing.T) {
	if _, err := uuid.Parse(Key()); err != nil {
		t.Fatalf("expected uuid key: %v", err)
	}
}
