package encryption

import (
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

const (
	// KeyBytes is the entropy of a primary or confirmation key.
	KeyBytes = 32
	// KeyLength is the hex length of an encoded key.
	KeyLength = KeyBytes * 2
)

// KeyGenerator mints voting keys from a cryptographically secure source.
type KeyGenerator struct {
	entropy io.Reader
}

// NewKeyGenerator returns a generator reading from crypto/rand.
func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{entropy: rand.Reader}
}

// NewKeyGeneratorFrom uses the given reader as entropy. The reader must be
// cryptographically secure outside of tests.
func NewKeyGeneratorFrom(entropy io.Reader) *KeyGenerator {
	return &KeyGenerator{entropy: entropy}
}

// GeneratePrimaryKey returns a fresh 64-character hex key.
func (g *KeyGenerator) GeneratePrimaryKey() (string, error) {
	return g.generate()
}

// GenerateConfirmationKey returns a fresh 64-character hex key.
func (g *KeyGenerator) GenerateConfirmationKey() (string, error) {
	return g.generate()
}

func (g *KeyGenerator) generate() (string, error) {
	buf := make([]byte, KeyBytes)
	if _, err := io.ReadFull(g.entropy, buf); err != nil {
		return "", fmt.Errorf("failed to read key entropy: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// VerifyKeyFormat checks the exact length and the hex charset.
func VerifyKeyFormat(key string) bool {
	if len(key) != KeyLength {
		return false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// NormalizeKey lowercases a key for lookup.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// ComputeVerificationHash binds both keys and the ballot identity into a SHA-512 digest.
func ComputeVerificationHash(primaryKey, confirmationKey string, userID, electionID, candidateID uint) string {
	canonical := strings.Join([]string{
		NormalizeKey(primaryKey),
		NormalizeKey(confirmationKey),
		strconv.FormatUint(uint64(userID), 10),
		strconv.FormatUint(uint64(electionID), 10),
		strconv.FormatUint(uint64(candidateID), 10),
	}, "|")

	sum := sha512.Sum512([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// VoterAddress derives the pseudonymous address recorded in the ledger for a
// voter in one election.
func VoterAddress(userID, electionID uint) string {
	d := sha3.NewLegacyKeccak256()
	fmt.Fprintf(d, "voter:%d:%d", userID, electionID)
	return common.BytesToAddress(d.Sum(nil)).Hex()
}

// MaskKey shortens a key for logs.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:8] + "..."
}
