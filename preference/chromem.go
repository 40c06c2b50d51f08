package preference

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"

	"github.com/tempoai/tempo/logging"
)

// ChromemStore implements Store with authoritative records in a process-local
// map and a chromem-go collection carrying the description embeddings.
// chromem-go is an embeddable pure-Go vector database, so no external service
// is required for similarity search. Record writes and their index updates
// happen under one lock, keeping the two sides consistent.
type ChromemStore struct {
	mu         sync.RWMutex
	records    map[string]map[string]*Preference // user id -> key -> record
	db         *chromem.DB
	collection *chromem.Collection
	embed      chromem.EmbeddingFunc
	logger     logging.Logger
	now        func() time.Time
}

var _ Store = (*ChromemStore)(nil)

// ChromemOptions configure the chromem-backed store.
type ChromemOptions struct {
	// PersistPath, when set, stores the vector index on disk (gob files).
	// Empty means in-memory only.
	PersistPath string
	// Compress enables gzip for the persisted index.
	Compress bool
	// Collection names the chromem collection. Default "preferences".
	Collection string
	Logger     logging.Logger
}

// NewChromemStore creates a preference store around the given embedding
// function. The embedder is required: similarity search is part of the
// store's contract.
func NewChromemStore(embed chromem.EmbeddingFunc, optFns ...func(o *ChromemOptions)) (*ChromemStore, error) {
	if embed == nil {
		return nil, fmt.Errorf("preference: embedding function is required")
	}
	opts := ChromemOptions{Collection: "preferences", Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	var (
		db  *chromem.DB
		err error
	)
	if opts.PersistPath != "" {
		db, err = chromem.NewPersistentDB(opts.PersistPath, opts.Compress)
		if err != nil {
			return nil, fmt.Errorf("preference: open persistent index: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	collection, err := db.GetOrCreateCollection(opts.Collection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("preference: create collection: %w", err)
	}

	return &ChromemStore{
		records:    map[string]map[string]*Preference{},
		db:         db,
		collection: collection,
		embed:      embed,
		logger:     opts.Logger,
		now:        time.Now,
	}, nil
}

// Put upserts by (userID, key) and reindexes the description embedding.
func (s *ChromemStore) Put(ctx context.Context, userID, key, description, value string, weight float64) (Preference, error) {
	p := Preference{UserID: userID, Key: key, Description: description, Value: value, Weight: weight}
	if err := p.Validate(); err != nil {
		return Preference{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	byKey := s.records[userID]
	if byKey == nil {
		byKey = map[string]*Preference{}
		s.records[userID] = byKey
	}

	if existing, ok := byKey[key]; ok {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
	} else {
		p.ID = uuid.NewString()
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	// AddDocument with an existing ID replaces the stored document, so the
	// embedding tracks every description change.
	err := s.collection.AddDocument(ctx, chromem.Document{
		ID:      p.ID,
		Content: embeddingText(&p),
		Metadata: map[string]string{
			"user_id": p.UserID,
			"key":     p.Key,
		},
	})
	if err != nil {
		return Preference{}, fmt.Errorf("preference: index %q: %w", key, err)
	}

	stored := p
	byKey[key] = &stored
	s.logger.Debug("preference.put", "user", userID, "key", key, "weight", weight)
	return p, nil
}

// Get returns the exact-key record, or all records of the user (sorted by
// key) when key is empty.
func (s *ChromemStore) Get(_ context.Context, userID, key string) ([]Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byKey := s.records[userID]
	if key != "" {
		p, ok := byKey[key]
		if !ok {
			return nil, fmt.Errorf("%w: user %q key %q", ErrNotFound, userID, key)
		}
		return []Preference{*p}, nil
	}

	out := make([]Preference, 0, len(byKey))
	for _, p := range byKey {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Similar runs an embedding query over the user's preferences.
func (s *ChromemStore) Similar(ctx context.Context, userID, query string, k int) ([]Match, error) {
	if k <= 0 {
		k = 5
	}

	s.mu.RLock()
	count := len(s.records[userID])
	s.mu.RUnlock()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		// chromem rejects nResults above the matching document count.
		k = count
	}

	results, err := s.collection.Query(ctx, query, k, map[string]string{"user_id": userID}, nil)
	if err != nil {
		return nil, fmt.Errorf("preference: similarity query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	byKey := s.records[userID]
	matches := make([]Match, 0, len(results))
	for _, r := range results {
		p, ok := byKey[r.Metadata["key"]]
		if !ok || p.ID != r.ID {
			continue
		}
		matches = append(matches, Match{Preference: *p, Similarity: r.Similarity})
	}
	return matches, nil
}

// Delete removes the record and its index entry.
func (s *ChromemStore) Delete(ctx context.Context, userID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKey := s.records[userID]
	p, ok := byKey[key]
	if !ok {
		return fmt.Errorf("%w: user %q key %q", ErrNotFound, userID, key)
	}
	if err := s.collection.Delete(ctx, nil, nil, p.ID); err != nil {
		return fmt.Errorf("preference: unindex %q: %w", key, err)
	}
	delete(byKey, key)
	return nil
}

// embeddingText is what gets embedded for a record: the description, with the
// key as fallback so sparse records stay searchable.
func embeddingText(p *Preference) string {
	if strings.TrimSpace(p.Description) != "" {
		return p.Description
	}
	return p.Key
}
