package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arjunbot/arjun/pkg/logger"
	"github.com/arjunbot/arjun/pkg/store"
)

// DefaultRelevantLimit caps ranked retrieval when no limit is given.
const DefaultRelevantLimit = 50

type memoryDoc struct {
	Records []Record `json:"records"`
}

// Store owns each user's memory collection. Operations on the same user
// are serialized with a per-user lock, so two check-in kinds firing at
// once cannot lose each other's appends in the read-modify-write cycle.
type Store struct {
	docs  store.Store
	mu    sync.Mutex
	users map[string]*sync.Mutex
}

func NewStore(docs store.Store) *Store {
	return &Store{
		docs:  docs,
		users: make(map[string]*sync.Mutex),
	}
}

func (s *Store) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.users[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.users[userID] = lock
	}
	return lock
}

// AddMemory appends a record with a recomputed importance score, re-sorts
// the collection by importance then recency, and rewrites the document.
// Storage errors are logged, never raised: losing one memory is acceptable
// degraded behavior and must not fail the check-in cycle that produced it.
func (s *Store) AddMemory(ctx context.Context, userID, memType, content string) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	var doc memoryDoc
	if _, err := s.docs.Read(ctx, userID, store.KindMemory, &doc); err != nil {
		logger.ErrorCF("memory", "Failed to load memories, dropping new record", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		return
	}

	doc.Records = append(doc.Records, Record{
		ID:         uuid.NewString(),
		CreatedAt:  time.Now().UTC(),
		Type:       memType,
		Content:    content,
		Importance: Importance(content),
	})
	sortRecords(doc.Records)

	if err := s.docs.Write(ctx, userID, store.KindMemory, doc); err != nil {
		logger.ErrorCF("memory", "Failed to persist memories", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
}

// Memories returns the stored collection in persisted order: importance
// non-increasing, newer first within equal importance.
func (s *Store) Memories(ctx context.Context, userID string) []Record {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	return s.loadLocked(ctx, userID)
}

func (s *Store) loadLocked(ctx context.Context, userID string) []Record {
	var doc memoryDoc
	if _, err := s.docs.Read(ctx, userID, store.KindMemory, &doc); err != nil {
		logger.ErrorCF("memory", "Failed to load memories", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		return nil
	}
	return doc.Records
}

// RelevantMemories rescans the full collection, ranks every record by
// relevance-to-context plus stored importance, and returns at most limit
// records. Ties are left in whatever order the sort produces.
func (s *Store) RelevantMemories(ctx context.Context, userID, contextText string, limit int) []Record {
	if limit <= 0 {
		limit = DefaultRelevantLimit
	}

	lock := s.userLock(userID)
	lock.Lock()
	records := s.loadLocked(ctx, userID)
	lock.Unlock()

	if len(records) == 0 {
		return nil
	}

	type scored struct {
		rec   Record
		score int
	}
	ranked := make([]scored, 0, len(records))
	for _, rec := range records {
		ranked = append(ranked, scored{
			rec:   rec,
			score: Relevance(rec.Content, contextText) + rec.Importance,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]Record, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.rec)
	}
	return out
}

func sortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Importance != records[j].Importance {
			return records[i].Importance > records[j].Importance
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}
