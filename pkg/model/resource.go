package model

import "time"

// Resource is the catalog's read model. The engine consumes only the id,
// owner and approval policy; Title is carried along for event payloads.
type Resource struct {
	ID               string    `json:"id,omitempty" bson:"_id,omitempty"`
	OwnerID          string    `json:"owner_id" bson:"owner_id"`
	Title            string    `json:"title" bson:"title"`
	RequiresApproval bool      `json:"requires_approval" bson:"requires_approval"`
	CreatedAt        time.Time `json:"created_at" bson:"created_at"`
}
