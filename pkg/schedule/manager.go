package schedule

import (
	"context"
	"fmt"

	"github.com/arjunbot/arjun/pkg/logger"
	"github.com/arjunbot/arjun/pkg/profile"
)

// TriggerKind names a check-in category.
type TriggerKind string

const (
	KindMorning  TriggerKind = "morning"
	KindEvening  TriggerKind = "evening"
	KindWeekly   TriggerKind = "weekly"
	KindActivity TriggerKind = "activity"
)

// TriggerID builds the stable identifier for a (user, kind) trigger.
func TriggerID(userID string, kind TriggerKind) string {
	return fmt.Sprintf("%s:%s", userID, kind)
}

// ActivityTriggerID builds the identifier for one hourly activity slot.
// The hour is part of the identity so repeated installs of the same slot
// dedup by construction.
func ActivityTriggerID(userID string, hour int) string {
	return fmt.Sprintf("%s:%s:%02d", userID, KindActivity, hour)
}

// ConfigSource supplies the persisted user configurations the trigger set
// is derived from.
type ConfigSource interface {
	ListUsers(ctx context.Context) ([]string, error)
	Get(ctx context.Context, userID string) (profile.UserConfig, bool, error)
}

// TriggerFunc handles a fired trigger for one user and kind.
type TriggerFunc func(ctx context.Context, userID string, kind TriggerKind)

// Manager derives each user's trigger set from their configuration and
// keeps the scheduler registry in sync with it.
type Manager struct {
	sched    *Scheduler
	profiles ConfigSource
	fire     TriggerFunc
}

func NewManager(sched *Scheduler, profiles ConfigSource, fire TriggerFunc) *Manager {
	return &Manager{sched: sched, profiles: profiles, fire: fire}
}

// ScheduleAllUsers (re)installs triggers for every known user. A failure
// for one user disables that user's proactive messaging but never aborts
// scheduling for the others.
func (m *Manager) ScheduleAllUsers(ctx context.Context) error {
	users, err := m.profiles.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	scheduled := 0
	for _, userID := range users {
		if err := m.ScheduleUser(ctx, userID); err != nil {
			logger.ErrorCF("schedule", "Failed to schedule user", map[string]any{
				"user_id": userID,
				"error":   err.Error(),
			})
			continue
		}
		scheduled++
	}
	logger.InfoCF("schedule", "Scheduled all users", map[string]any{
		"users":     len(users),
		"scheduled": scheduled,
	})
	return nil
}

// ScheduleUser installs the full trigger set for one user: morning,
// evening, weekly, and one activity trigger per whole hour from the
// morning hour through the evening hour inclusive. Installing an
// identifier replaces any prior trigger with that identifier.
func (m *Manager) ScheduleUser(ctx context.Context, userID string) error {
	cfg, found, err := m.profiles.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !found {
		return profile.ErrUnknownUser
	}

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("user %s: load timezone %q: %w", userID, cfg.Timezone, err)
	}
	weekday, err := cfg.WeeklyWeekday()
	if err != nil {
		return fmt.Errorf("user %s: %w", userID, err)
	}

	install := func(id, expr string, kind TriggerKind) error {
		uid := userID
		return m.sched.Install(id, expr, loc, func(ctx context.Context) {
			m.fire(ctx, uid, kind)
		})
	}

	if err := install(TriggerID(userID, KindMorning),
		fmt.Sprintf("0 %d * * *", cfg.MorningCheckHour), KindMorning); err != nil {
		return err
	}
	if err := install(TriggerID(userID, KindEvening),
		fmt.Sprintf("0 %d * * *", cfg.EveningReviewHour), KindEvening); err != nil {
		return err
	}
	if err := install(TriggerID(userID, KindWeekly),
		fmt.Sprintf("0 %d * * %d", cfg.WeeklyReviewHour, int(weekday)), KindWeekly); err != nil {
		return err
	}

	for hour := cfg.MorningCheckHour; hour <= cfg.EveningReviewHour; hour++ {
		if err := install(ActivityTriggerID(userID, hour),
			fmt.Sprintf("0 %d * * *", hour), KindActivity); err != nil {
			return err
		}
	}

	return nil
}

// CancelUserTriggers cancels the morning, evening, and weekly triggers.
// Hourly activity triggers are not tracked individually; they are
// replaced wholesale by the next full reinstall, which dedups by
// identifier.
func (m *Manager) CancelUserTriggers(userID string) {
	m.sched.Cancel(TriggerID(userID, KindMorning))
	m.sched.Cancel(TriggerID(userID, KindEvening))
	m.sched.Cancel(TriggerID(userID, KindWeekly))
}

// CancelAllUserTriggers removes every trigger belonging to a user,
// including activity slots. Used when a user stops tracking entirely.
func (m *Manager) CancelAllUserTriggers(userID string) {
	removed := m.sched.CancelPrefix(userID + ":")
	logger.InfoCF("schedule", "Cancelled user triggers", map[string]any{
		"user_id": userID,
		"removed": removed,
	})
}

// RescheduleUser is cancel-then-full-reinstall, called after any
// configuration mutation.
func (m *Manager) RescheduleUser(ctx context.Context, userID string) error {
	m.CancelUserTriggers(userID)
	return m.ScheduleUser(ctx, userID)
}
