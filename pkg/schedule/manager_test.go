package schedule

import (
	"context"
	"testing"

	"github.com/arjunbot/arjun/pkg/profile"
)

type fakeConfigSource struct {
	configs map[string]profile.UserConfig
}

func (f *fakeConfigSource) ListUsers(ctx context.Context) ([]string, error) {
	users := make([]string, 0, len(f.configs))
	for id := range f.configs {
		users = append(users, id)
	}
	return users, nil
}

func (f *fakeConfigSource) Get(ctx context.Context, userID string) (profile.UserConfig, bool, error) {
	cfg, ok := f.configs[userID]
	return cfg, ok, nil
}

func testUserConfig() profile.UserConfig {
	return profile.UserConfig{
		MorningCheckHour:         9,
		EveningReviewHour:        21,
		WeeklyReviewDay:          "SUN",
		WeeklyReviewHour:         18,
		ActivityCheckProbability: 0.3,
		Timezone:                 "UTC",
	}
}

func noopFire(ctx context.Context, userID string, kind TriggerKind) {}

func TestManager_ScheduleUserInstallsFullTriggerSet(t *testing.T) {
	sched := NewScheduler()
	src := &fakeConfigSource{configs: map[string]profile.UserConfig{"u1": testUserConfig()}}
	m := NewManager(sched, src, noopFire)

	if err := m.ScheduleUser(context.Background(), "u1"); err != nil {
		t.Fatalf("ScheduleUser: %v", err)
	}

	// morning + evening + weekly + 13 activity slots (hours 9..21 inclusive)
	if got := len(sched.IDs()); got != 16 {
		t.Fatalf("got %d triggers, want 16: %v", got, sched.IDs())
	}
	for _, id := range []string{"u1:morning", "u1:evening", "u1:weekly", "u1:activity:09", "u1:activity:21"} {
		if !sched.Has(id) {
			t.Errorf("missing trigger %s", id)
		}
	}
}

func TestManager_ScheduleUserUnknownUser(t *testing.T) {
	m := NewManager(NewScheduler(), &fakeConfigSource{configs: map[string]profile.UserConfig{}}, noopFire)
	if err := m.ScheduleUser(context.Background(), "ghost"); err != profile.ErrUnknownUser {
		t.Fatalf("err = %v, want ErrUnknownUser", err)
	}
}

func TestManager_RescheduleIsIdempotent(t *testing.T) {
	sched := NewScheduler()
	src := &fakeConfigSource{configs: map[string]profile.UserConfig{"u1": testUserConfig()}}
	m := NewManager(sched, src, noopFire)

	for i := 0; i < 3; i++ {
		if err := m.RescheduleUser(context.Background(), "u1"); err != nil {
			t.Fatalf("RescheduleUser #%d: %v", i, err)
		}
	}

	if got := len(sched.IDs()); got != 16 {
		t.Fatalf("got %d triggers after repeated reschedules, want 16", got)
	}
}

func TestManager_RescheduleReflectsNewHours(t *testing.T) {
	sched := NewScheduler()
	cfg := testUserConfig()
	src := &fakeConfigSource{configs: map[string]profile.UserConfig{"u1": cfg}}
	m := NewManager(sched, src, noopFire)

	if err := m.ScheduleUser(context.Background(), "u1"); err != nil {
		t.Fatalf("ScheduleUser: %v", err)
	}

	cfg.MorningCheckHour = 10
	cfg.EveningReviewHour = 18
	src.configs["u1"] = cfg
	if err := m.RescheduleUser(context.Background(), "u1"); err != nil {
		t.Fatalf("RescheduleUser: %v", err)
	}

	if !sched.Has("u1:activity:10") {
		t.Error("missing new activity slot 10")
	}
	// Partial cancel removes only the three named triggers; hourly slots
	// outside the new window linger until a full cancel.
	if !sched.Has("u1:activity:09") {
		t.Error("stale slot should survive a partial cancel")
	}

	m.CancelAllUserTriggers("u1")
	if got := len(sched.IDs()); got != 0 {
		t.Fatalf("got %d triggers after full cancel, want 0: %v", got, sched.IDs())
	}
}

func TestManager_ScheduleAllUsersSkipsBrokenUser(t *testing.T) {
	sched := NewScheduler()
	broken := testUserConfig()
	broken.Timezone = "Not/AZone"
	src := &fakeConfigSource{configs: map[string]profile.UserConfig{
		"good": testUserConfig(),
		"bad":  broken,
	}}
	m := NewManager(sched, src, noopFire)

	if err := m.ScheduleAllUsers(context.Background()); err != nil {
		t.Fatalf("ScheduleAllUsers: %v", err)
	}
	if !sched.Has("good:morning") {
		t.Error("good user should be scheduled despite the broken one")
	}
	if sched.Has("bad:morning") {
		t.Error("broken user must not be scheduled")
	}
}
