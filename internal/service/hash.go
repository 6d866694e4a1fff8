package service

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// RequestHash fingerprints a submission by its entry IDs and requested
// confirmation statuses. Order of the decisions does not matter.
func RequestHash(decisions []EntryDecision) string {
	pairs := make([]string, 0, len(decisions))
	for _, d := range decisions {
		pairs = append(pairs, strconv.FormatUint(uint64(d.ID), 10)+":"+string(d.ConfirmationStatus))
	}
	sort.Strings(pairs)

	sum := sha256.Sum256([]byte(strings.Join(pairs, ",")))
	return hex.EncodeToString(sum[:])
}
