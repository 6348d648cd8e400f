package constants

import "time"

// RowStatus is the canonical lifecycle status for rows in doc_rows.
type RowStatus string

// Stable values (store these exact strings in DB).
const (
	RowStatusUploaded   RowStatus = "uploaded"   // file registered, no extraction yet
	RowStatusExtracting RowStatus = "extracting" // claimed by an extraction run
	RowStatusExtracted  RowStatus = "extracted"  // data committed; re-extract is a no-op
	RowStatusFailed     RowStatus = "failed"     // failed; eligible for re-claim
)

const (
	// StaleExtractingAfter is how long a row may sit in "extracting" before
	// another caller is allowed to reclaim it.
	StaleExtractingAfter = 15 * time.Minute

	// MaxRawResponseLen bounds the stored provider response so a runaway
	// model reply cannot blow up row storage.
	MaxRawResponseLen = 20000

	// SignedURLTTL is the validity window for document retrieval URLs.
	SignedURLTTL = time.Hour
)

// ClaimableStatuses are the states an extraction run may claim a row from
// directly; a stuck "extracting" row additionally becomes claimable once it
// passes StaleExtractingAfter.
func ClaimableStatuses() []string {
	return []string{string(RowStatusUploaded), string(RowStatusFailed)}
}
