package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// GenesisHash seeds the chain before any entry exists.
var GenesisHash = strings.Repeat("0", 64)

// ComputeEntryHash hashes the canonical field tuple of an event, chaining in
// PrevHash. Any mutation of a recorded field breaks verification of every
// subsequent entry.
func ComputeEntryHash(e Event) string {
	canonical := strings.Join([]string{
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.EventType,
		e.LeaseID,
		e.Decision,
		e.PolicyHash,
		e.ActorID,
		e.WorkspaceID,
		e.ModelID,
		strconv.Itoa(e.EstimatedCostCents),
		strconv.Itoa(e.ActualCostCents),
		strings.Join(e.RequestedTools, ","),
		strings.Join(e.ToolUsageSummary, ","),
		e.PrevHash,
	}, "|")

	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// VerifyChain walks events in order, checking each entry's hash and its link
// to the previous one. Returns the index of the first broken entry, or -1
// when the chain is intact.
func VerifyChain(events []Event) int {
	prev := GenesisHash
	for i, e := range events {
		if e.PrevHash != prev {
			return i
		}
		if ComputeEntryHash(e) != e.EntryHash {
			return i
		}
		prev = e.EntryHash
	}
	return -1
}
