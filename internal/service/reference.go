package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// newReference builds a human-readable unique reference like
// MERCH-1a2b3c4d-1735689600123. The UUID fragment keeps references unique
// even when two are minted in the same millisecond.
func newReference(prefix string) string {
	short := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%s-%d", prefix, short, time.Now().UnixMilli())
}
