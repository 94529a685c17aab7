package id

import (
	"encoding/hex"
	"regexp"
	"testing"
)

var (
	reHex32  = regexp.MustCompile(`^[a-f0-9]{32}$`)
	reDigits = regexp.MustCompile(`^[0-9]{10}$`)
)

func TestNewID32_FormatAndDecode(t *testing.T) {
	got := NewID32()

	if len(got) != 32 {
		t.Fatalf("length = %d, want 32 (got=%q)", len(got), got)
	}
	if !reHex32.MatchString(got) {
		t.Fatalf("not 32-char lowercase hex: %q", got)
	}
	b, err := hex.DecodeString(got)
	if err != nil {
		t.Fatalf("hex.DecodeString error: %v", err)
	}
	if len(b) != 16 {
		t.Fatalf("decoded bytes = %d, want 16", len(b))
	}
}

func TestNewID32_Uniqueness(t *testing.T) {
	const n = 200
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		id := NewID32()
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate id after %d iterations: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestNewAccountNumber_FixedWidthDigits(t *testing.T) {
	for i := 0; i < 100; i++ {
		n := NewAccountNumber()
		if !reDigits.MatchString(n) {
			t.Fatalf("account number %q is not 10 digits", n)
		}
		if n[:4] != accountNumberPrefix {
			t.Fatalf("account number %q missing prefix", n)
		}
	}
}

func TestFromKey_StablePerScope(t *testing.T) {
	a := FromKey("deposit", "req-1")
	if a != FromKey("deposit", "req-1") {
		t.Fatal("same scope and key must give the same id")
	}
	if a == FromKey("withdraw", "req-1") {
		t.Fatal("different scopes must not collide")
	}
	if a == FromKey("deposit", "req-2") {
		t.Fatal("different keys must not collide")
	}
}
