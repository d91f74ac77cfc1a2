package core

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// Fingerprint identifies a bank line independently of its row id, so the same
// statement imported twice maps onto the same value. Whitespace inside the
// description is ignored because banks reflow it between exports.
func Fingerprint(date, description string, amount Money, account string) string {
	desc := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, description)
	sum := sha256.Sum256([]byte(strings.Join([]string{date, desc, amount.String(), account}, ",")))
	return hex.EncodeToString(sum[:])
}

// ComputeFingerprint returns the fingerprint of t's identifying fields.
func (t Transaction) ComputeFingerprint() string {
	return Fingerprint(t.Date, t.Description, t.Amount, t.Account)
}
