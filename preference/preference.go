// Package preference owns weighted user preference records and the Store
// capability interface: exact lookup by key, upsert-by-key, and similarity
// search over an embedding-backed index. Embeddings are derived from the
// description and owned by the store; consumers never compute them.
package preference

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a preference lookup does not resolve.
var ErrNotFound = errors.New("preference: not found")

// Preference is one weighted preference record. Weight expresses
// confidence/importance in [0, 1]. Storing a preference with an existing
// (user, key) pair updates value/weight/description in place rather than
// duplicating.
type Preference struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Key         string    `json:"key"`
	Description string    `json:"description"`
	Value       string    `json:"value"`
	Weight      float64   `json:"weight"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks the record's structural invariants.
func (p *Preference) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("preference: user id is required")
	}
	if p.Key == "" {
		return fmt.Errorf("preference: key is required")
	}
	if p.Weight < 0 || p.Weight > 1 {
		return fmt.Errorf("preference: weight %v outside [0, 1]", p.Weight)
	}
	return nil
}

// Match pairs a preference with its similarity to a query (higher is closer).
type Match struct {
	Preference
	Similarity float32 `json:"similarity"`
}

// Store is the preference persistence and retrieval capability.
type Store interface {
	// Put upserts by (userID, key): an existing record keeps its identity
	// and creation time while description, value and weight are replaced and
	// the embedding is recomputed.
	Put(ctx context.Context, userID, key, description, value string, weight float64) (Preference, error)

	// Get returns the preference for an exact key, or all preferences of the
	// user when key is empty. A missing exact key yields ErrNotFound.
	Get(ctx context.Context, userID, key string) ([]Preference, error)

	// Similar returns up to k preferences of the user ranked by embedding
	// distance to the query text.
	Similar(ctx context.Context, userID, query string, k int) ([]Match, error)

	// Delete removes the preference with the exact key.
	Delete(ctx context.Context, userID, key string) error
}
