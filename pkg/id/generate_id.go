package id

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"

	"github.com/google/uuid"
)

// AccountNumberLength is the fixed width of a display account number.
const AccountNumberLength = 10

// accountNumberPrefix is the bank routing prefix every generated number starts with.
const accountNumberPrefix = "2647"

var keyNamespace = uuid.MustParse("7b0c9f3e-54a1-4c55-9a6f-2f8e1d0c6a11")

// NewID32 returns exactly 32 hex characters (no separators/prefixes).
func NewID32() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// NewAccountNumber returns a 10-digit numeric account number.
func NewAccountNumber() string {
	width := AccountNumberLength - len(accountNumberPrefix)
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(width)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		n = big.NewInt(0)
	}
	s := n.String()
	for len(s) < width {
		s = "0" + s
	}
	return accountNumberPrefix + s
}

// NewTxnID returns a random transaction id.
func NewTxnID() string { return uuid.NewString() }

// FromKey derives a stable id from a caller-supplied request key, so retries of
// the same request resolve to the same record.
func FromKey(scope, key string) string {
	return uuid.NewSHA1(keyNamespace, []byte(scope+":"+key)).String()
}
