package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arjunbot/arjun/pkg/store"
)

// Defaults seeds new user configurations.
type Defaults struct {
	MorningCheckHour         int
	EveningReviewHour        int
	WeeklyReviewDay          string
	WeeklyReviewHour         int
	ActivityCheckProbability float64
	Timezone                 string
}

// Manager owns UserConfig documents and the per-user message history.
// All mutations go through explicit setters that validate at the write
// boundary, so stored values are always in range.
type Manager struct {
	docs     store.Store
	defaults Defaults
}

func NewManager(docs store.Store, defaults Defaults) *Manager {
	return &Manager{docs: docs, defaults: defaults}
}

// Get loads a user's configuration. found is false for unknown users.
func (m *Manager) Get(ctx context.Context, userID string) (UserConfig, bool, error) {
	var cfg UserConfig
	found, err := m.docs.Read(ctx, userID, store.KindConfig, &cfg)
	if err != nil {
		return UserConfig{}, false, err
	}
	return cfg, found, nil
}

// Create installs the default configuration for a new user. Existing
// configurations are left untouched.
func (m *Manager) Create(ctx context.Context, userID string) (UserConfig, bool, error) {
	if cfg, found, err := m.Get(ctx, userID); err != nil || found {
		return cfg, false, err
	}

	cfg := UserConfig{
		MorningCheckHour:         m.defaults.MorningCheckHour,
		EveningReviewHour:        m.defaults.EveningReviewHour,
		WeeklyReviewDay:          m.defaults.WeeklyReviewDay,
		WeeklyReviewHour:         m.defaults.WeeklyReviewHour,
		ActivityCheckProbability: clampProbability(m.defaults.ActivityCheckProbability),
		Timezone:                 m.defaults.Timezone,
		JoinedAt:                 time.Now().UTC(),
	}
	if err := m.docs.Write(ctx, userID, store.KindConfig, cfg); err != nil {
		return UserConfig{}, false, err
	}
	return cfg, true, nil
}

func (m *Manager) update(ctx context.Context, userID string, mutate func(*UserConfig) error) error {
	cfg, found, err := m.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !found {
		return ErrUnknownUser
	}
	if err := mutate(&cfg); err != nil {
		return err
	}
	return m.docs.Write(ctx, userID, store.KindConfig, cfg)
}

// SetCheckHour updates the morning or evening check hour.
func (m *Manager) SetCheckHour(ctx context.Context, userID, checkType string, hour int) error {
	if err := validateHour(hour); err != nil {
		return err
	}
	return m.update(ctx, userID, func(cfg *UserConfig) error {
		switch checkType {
		case CheckMorning:
			cfg.MorningCheckHour = hour
		case CheckEvening:
			cfg.EveningReviewHour = hour
		default:
			return fmt.Errorf("invalid check type %q (use %s or %s)", checkType, CheckMorning, CheckEvening)
		}
		return nil
	})
}

func (m *Manager) SetWeeklyReview(ctx context.Context, userID, day string, hour int) error {
	if _, err := ParseWeekday(day); err != nil {
		return err
	}
	if err := validateHour(hour); err != nil {
		return err
	}
	return m.update(ctx, userID, func(cfg *UserConfig) error {
		cfg.WeeklyReviewDay = day
		cfg.WeeklyReviewHour = hour
		return nil
	})
}

func (m *Manager) SetActivityProbability(ctx context.Context, userID string, p float64) error {
	return m.update(ctx, userID, func(cfg *UserConfig) error {
		cfg.ActivityCheckProbability = clampProbability(p)
		return nil
	})
}

func (m *Manager) SetTimezone(ctx context.Context, userID, tz string) error {
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("invalid timezone %q (use an IANA name like UTC or America/Los_Angeles)", tz)
	}
	return m.update(ctx, userID, func(cfg *UserConfig) error {
		cfg.Timezone = tz
		return nil
	})
}

func (m *Manager) SetClockify(ctx context.Context, userID, apiKey string) error {
	return m.update(ctx, userID, func(cfg *UserConfig) error {
		cfg.ClockifyAPIKey = apiKey
		cfg.ClockifyEnabled = true
		return nil
	})
}

func (m *Manager) DisableClockify(ctx context.Context, userID string) error {
	return m.update(ctx, userID, func(cfg *UserConfig) error {
		cfg.ClockifyEnabled = false
		return nil
	})
}

// TouchInteraction records the time of the user's latest message.
func (m *Manager) TouchInteraction(ctx context.Context, userID string) error {
	return m.update(ctx, userID, func(cfg *UserConfig) error {
		cfg.LastInteraction = time.Now().UTC()
		return nil
	})
}

// Delete removes every document for a user.
func (m *Manager) Delete(ctx context.Context, userID string) error {
	return m.docs.DeleteUser(ctx, userID)
}

func (m *Manager) ListUsers(ctx context.Context) ([]string, error) {
	return m.docs.ListUsers(ctx)
}

// HistoryEntry is one line of the append-only message history.
type HistoryEntry struct {
	At      time.Time `json:"at"`
	Kind    string    `json:"kind"`
	Role    string    `json:"role"`
	Content string    `json:"content"`
}

type historyDoc struct {
	Entries []HistoryEntry `json:"entries"`
}

// AppendHistory records a sent or received message, grouped by check-in kind.
func (m *Manager) AppendHistory(ctx context.Context, userID, kind, role, content string) error {
	var doc historyDoc
	if _, err := m.docs.Read(ctx, userID, store.KindMessages, &doc); err != nil {
		return err
	}
	doc.Entries = append(doc.Entries, HistoryEntry{
		At:      time.Now().UTC(),
		Kind:    kind,
		Role:    role,
		Content: content,
	})
	return m.docs.Write(ctx, userID, store.KindMessages, doc)
}

// History returns the most recent limit entries, oldest first.
func (m *Manager) History(ctx context.Context, userID string, limit int) ([]HistoryEntry, error) {
	var doc historyDoc
	if _, err := m.docs.Read(ctx, userID, store.KindMessages, &doc); err != nil {
		return nil, err
	}
	entries := doc.Entries
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// Export bundles every stored document for a user into one JSON blob.
func (m *Manager) Export(ctx context.Context, userID string) ([]byte, error) {
	_, found, err := m.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrUnknownUser
	}

	bundle := map[string]json.RawMessage{}
	for _, kind := range []store.Kind{store.KindConfig, store.KindMessages, store.KindMemory} {
		var raw json.RawMessage
		docFound, err := m.docs.Read(ctx, userID, kind, &raw)
		if err != nil {
			return nil, err
		}
		if !docFound {
			raw = json.RawMessage("null")
		}
		bundle[string(kind)] = raw
	}
	return json.MarshalIndent(bundle, "", "  ")
}
