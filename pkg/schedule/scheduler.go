package schedule

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/arjunbot/arjun/pkg/logger"
)

// tickInterval is well under a minute so every minute boundary is seen.
const tickInterval = 20 * time.Second

// Trigger is a recurring activation: a cron expression evaluated in a
// specific timezone, firing Run when due.
type Trigger struct {
	ID   string
	Expr string
	Loc  *time.Location
	Run  func(ctx context.Context)
}

// Scheduler owns the process-wide trigger registry, keyed by identifier.
// Install and Cancel are the only mutators; installing an identifier that
// already exists replaces the prior trigger, so at most one trigger is
// ever active per identifier. The registry is transient and rebuilt from
// persisted user configuration on startup.
type Scheduler struct {
	mu         sync.Mutex
	triggers   map[string]Trigger
	gron       *gronx.Gronx
	lastMinute time.Time
	cancel     context.CancelFunc
	running    bool
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		triggers: make(map[string]Trigger),
		gron:     gronx.New(),
	}
}

// Install registers a trigger, replacing any prior trigger with the same
// identifier.
func (s *Scheduler) Install(id, expr string, loc *time.Location, run func(ctx context.Context)) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("trigger id is required")
	}
	if loc == nil {
		return fmt.Errorf("trigger %s: timezone is required", id)
	}
	if !s.gron.IsValid(expr) {
		return fmt.Errorf("trigger %s: invalid cron expression %q", id, expr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.triggers[id]; exists {
		logger.DebugCF("schedule", "Replacing trigger", map[string]any{"id": id})
	}
	s.triggers[id] = Trigger{ID: id, Expr: expr, Loc: loc, Run: run}
	return nil
}

func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.triggers, id)
}

// CancelPrefix removes every trigger whose identifier starts with prefix
// and reports how many were removed.
func (s *Scheduler) CancelPrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id := range s.triggers {
		if strings.HasPrefix(id, prefix) {
			delete(s.triggers, id)
			removed++
		}
	}
	return removed
}

func (s *Scheduler) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.triggers[id]
	return ok
}

func (s *Scheduler) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.triggers))
	for id := range s.triggers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Start launches the minute loop. Each wall-clock minute is evaluated at
// most once, so a trigger fires at most once per due minute.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	logger.InfoC("schedule", "Scheduler started")
	go s.loop(loopCtx)
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.cancel()
	logger.InfoC("schedule", "Scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.evaluate(ctx, now)
		}
	}
}

func (s *Scheduler) evaluate(ctx context.Context, now time.Time) {
	minute := now.Truncate(time.Minute)

	s.mu.Lock()
	if minute.Equal(s.lastMinute) {
		s.mu.Unlock()
		return
	}
	s.lastMinute = minute
	snapshot := make([]Trigger, 0, len(s.triggers))
	for _, t := range s.triggers {
		snapshot = append(snapshot, t)
	}
	s.mu.Unlock()

	for _, t := range snapshot {
		due, err := s.gron.IsDue(t.Expr, minute.In(t.Loc))
		if err != nil {
			logger.ErrorCF("schedule", "Failed to evaluate trigger", map[string]any{
				"id":    t.ID,
				"error": err.Error(),
			})
			continue
		}
		if !due {
			continue
		}
		logger.DebugCF("schedule", "Trigger due", map[string]any{"id": t.ID})
		go s.safeRun(ctx, t)
	}
}

// safeRun keeps a panicking handler from taking down the scheduler loop.
func (s *Scheduler) safeRun(ctx context.Context, t Trigger) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("schedule", "Trigger handler panicked", map[string]any{
				"id":    t.ID,
				"panic": fmt.Sprintf("%v", r),
			})
		}
	}()
	t.Run(ctx)
}
