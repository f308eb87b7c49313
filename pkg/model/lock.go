package model

import "time"

// AdvisoryLock serializes mutations on a lock key (a resource, or a
// resource+slot pair for the waitlist). The unique _id insert is the
// mutual exclusion; ExpiresAt backs a TTL index so crashed holders
// cannot wedge a resource.
type AdvisoryLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
