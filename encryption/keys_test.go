package encryption_test

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"testing"

	"secure-voting/encryption"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func TestGeneratePrimaryKey(t *testing.T) {
	gen := encryption.NewKeyGenerator()

	first, err := gen.GeneratePrimaryKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	second, err := gen.GeneratePrimaryKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	if len(first) != encryption.KeyLength {
		t.Fatalf("expected key length %d, got %d", encryption.KeyLength, len(first))
	}
	if !encryption.VerifyKeyFormat(first) {
		t.Fatalf("generated key %q has invalid format", first)
	}
	if first != strings.ToLower(first) {
		t.Fatalf("expected lower-case key, got %q", first)
	}
	if first == second {
		t.Fatalf("two generated keys are identical")
	}
}

func TestGenerateKeyFromReader(t *testing.T) {
	gen := encryption.NewKeyGeneratorFrom(bytes.NewReader(bytes.Repeat([]byte{0xab}, encryption.KeyBytes)))

	key, err := gen.GenerateConfirmationKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	if key != strings.Repeat("ab", encryption.KeyBytes) {
		t.Fatalf("unexpected key %q", key)
	}

	if _, err := gen.GenerateConfirmationKey(); err == nil {
		t.Fatalf("expected error once the reader is exhausted")
	}
}

func TestGenerateKeyEntropyFailure(t *testing.T) {
	gen := encryption.NewKeyGeneratorFrom(failingReader{})
	if _, err := gen.GeneratePrimaryKey(); err == nil {
		t.Fatalf("expected error from failing entropy source")
	}
}

func TestVerifyKeyFormat(t *testing.T) {
	valid := strings.Repeat("0123456789abcdef", 4)

	cases := []struct {
		name string
		key  string
		want bool
	}{
		{"lower hex", valid, true},
		{"upper hex", strings.ToUpper(valid), true},
		{"too short", valid[:63], false},
		{"too long", valid + "0", false},
		{"non hex", valid[:63] + "g", false},
		{"empty", "", false},
	}

	for _, tc := range cases {
		if got := encryption.VerifyKeyFormat(tc.key); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestComputeVerificationHash(t *testing.T) {
	pk := strings.Repeat("a", 64)
	ck := strings.Repeat("b", 64)

	hash := encryption.ComputeVerificationHash(pk, ck, 1, 2, 3)
	if len(hash) != 128 {
		t.Fatalf("expected SHA-512 hex digest of length 128, got %d", len(hash))
	}
	if again := encryption.ComputeVerificationHash(pk, ck, 1, 2, 3); again != hash {
		t.Fatalf("hash is not deterministic")
	}
	if upper := encryption.ComputeVerificationHash(strings.ToUpper(pk), ck, 1, 2, 3); upper != hash {
		t.Fatalf("hash should not depend on key case")
	}
	if other := encryption.ComputeVerificationHash(pk, ck, 1, 2, 4); other == hash {
		t.Fatalf("hash should change with the candidate")
	}
	if swapped := encryption.ComputeVerificationHash(ck, pk, 1, 2, 3); swapped == hash {
		t.Fatalf("hash should bind key order")
	}
}

func TestVoterAddress(t *testing.T) {
	addr := encryption.VoterAddress(7, 1)

	if !addressPattern.MatchString(addr) {
		t.Fatalf("unexpected address format %q", addr)
	}
	if encryption.VoterAddress(7, 1) != addr {
		t.Fatalf("address is not deterministic")
	}
	if encryption.VoterAddress(7, 2) == addr {
		t.Fatalf("address should differ between elections")
	}
}

func TestMaskKey(t *testing.T) {
	if got := encryption.MaskKey("0123456789abcdef"); got != "01234567..." {
		t.Fatalf("unexpected mask %q", got)
	}
	if got := encryption.MaskKey("short"); got != "***" {
		t.Fatalf("unexpected mask %q", got)
	}
}
