package transaction

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Hash computes the content hash identifying a transaction across
// ingestion paths. Two observations of the same real-world transaction
// must hash identically no matter which channel delivered them, so the
// inputs are reduced to a canonical form first: amount at two decimal
// places, date truncated to the day, description lowercased with
// whitespace collapsed.
func Hash(accountID int64, amount float64, date time.Time, description string) string {
	canonical := fmt.Sprintf("%d|%.2f|%s|%s",
		accountID,
		amount,
		date.Format("2006-01-02"),
		NormalizeDescription(description),
	)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// NormalizeDescription lowercases a description and collapses runs of
// whitespace so bank-side formatting differences do not change the
// hash.
func NormalizeDescription(description string) string {
	return strings.Join(strings.Fields(strings.ToLower(description)), " ")
}
