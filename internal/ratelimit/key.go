package ratelimit

import (
	"fmt"
	"time"
)

// BuildKey derives the counting-store key for one (operation, user, tier)
// bucket. Daily policies get the UTC calendar date appended, so the bucket
// rotates exactly at UTC midnight; all other policies share one key and rely
// on the store's sliding window.
func BuildKey(op Operation, userID string, tier Tier, now time.Time) string {
	key := fmt.Sprintf("ratelimit:%s:%s:%s", op, userID, tier)

	if PolicyFor(op, tier).Daily {
		key += ":" + now.UTC().Format("2006-01-02")
	}

	return key
}
