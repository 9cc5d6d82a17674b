package data

import "time"

// nowUTC exists so query cutoffs are computed in one place. Wall-clock
// skew across processes is tolerated (see dedup semantics); store-side
// TTL enforcement uses the persisted expires_at values, not this.
func nowUTC() time.Time {
	return time.Now().UTC()
}
