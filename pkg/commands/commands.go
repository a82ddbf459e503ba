package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/arjunbot/arjun/pkg/logger"
	"github.com/arjunbot/arjun/pkg/profile"
	"github.com/arjunbot/arjun/pkg/schedule"
)

// Kind is the closed set of user commands. Dispatch is an exhaustive
// switch over this enum rather than a string lookup with a default
// branch, so an unhandled kind is a visible gap, not silent fallthrough.
type Kind int

const (
	KindBegin Kind = iota
	KindConfig
	KindSetTime
	KindSetWeeklyReview
	KindSetCheckProbability
	KindSetTimezone
	KindSetClockify
	KindDisableClockify
	KindExportData
	KindHelp
	KindStop
	KindTriggerCheck
)

// Request is one parsed command invocation.
type Request struct {
	Kind   Kind
	UserID string
	Args   Args
}

// Args carries the typed arguments; only the fields relevant to the kind
// are set.
type Args struct {
	CheckType   string
	Hour        int
	Day         string
	Probability float64
	Timezone    string
	APIKey      string
	TriggerKind string
}

// Rescheduler reinstalls a user's triggers after configuration changes.
type Rescheduler interface {
	ScheduleUser(ctx context.Context, userID string) error
	RescheduleUser(ctx context.Context, userID string) error
	CancelAllUserTriggers(userID string)
}

// TriggerInvoker fires a check-in cycle directly (debug commands).
type TriggerInvoker interface {
	HandleTrigger(ctx context.Context, userID string, kind schedule.TriggerKind)
}

// KeyVerifier checks a time-tracking API key before it is stored.
type KeyVerifier interface {
	Verify(ctx context.Context, apiKey string) error
}

// Dispatcher maps commands onto the core contracts. Every branch returns
// a user-facing line; failures are surfaced as text, never as a crash.
type Dispatcher struct {
	profiles  *profile.Manager
	schedules Rescheduler
	trigger   TriggerInvoker
	verifier  KeyVerifier
}

func NewDispatcher(profiles *profile.Manager, schedules Rescheduler, trigger TriggerInvoker, verifier KeyVerifier) *Dispatcher {
	return &Dispatcher{
		profiles:  profiles,
		schedules: schedules,
		trigger:   trigger,
		verifier:  verifier,
	}
}

func (d *Dispatcher) Handle(ctx context.Context, req Request) string {
	switch req.Kind {
	case KindBegin:
		return d.begin(ctx, req.UserID)
	case KindConfig:
		return d.showConfig(ctx, req.UserID)
	case KindSetTime:
		return d.mutate(ctx, req.UserID, func() error {
			return d.profiles.SetCheckHour(ctx, req.UserID, req.Args.CheckType, req.Args.Hour)
		}, fmt.Sprintf("updated %s time to %d:00", req.Args.CheckType, req.Args.Hour))
	case KindSetWeeklyReview:
		return d.mutate(ctx, req.UserID, func() error {
			return d.profiles.SetWeeklyReview(ctx, req.UserID, req.Args.Day, req.Args.Hour)
		}, fmt.Sprintf("updated weekly review to %s %d:00", strings.ToUpper(req.Args.Day), req.Args.Hour))
	case KindSetCheckProbability:
		return d.mutate(ctx, req.UserID, func() error {
			return d.profiles.SetActivityProbability(ctx, req.UserID, req.Args.Probability)
		}, fmt.Sprintf("updated activity check probability to %.0f%%", req.Args.Probability*100))
	case KindSetTimezone:
		return d.mutate(ctx, req.UserID, func() error {
			return d.profiles.SetTimezone(ctx, req.UserID, req.Args.Timezone)
		}, fmt.Sprintf("updated timezone to %s", req.Args.Timezone))
	case KindSetClockify:
		return d.setClockify(ctx, req.UserID, req.Args.APIKey)
	case KindDisableClockify:
		if err := d.profiles.DisableClockify(ctx, req.UserID); err != nil {
			return userFacing(err)
		}
		return "clockify integration disabled"
	case KindExportData:
		return d.export(ctx, req.UserID)
	case KindHelp:
		return helpText
	case KindStop:
		return d.stop(ctx, req.UserID)
	case KindTriggerCheck:
		return d.fireTrigger(ctx, req.UserID, req.Args.TriggerKind)
	}
	return "unknown command, try /help"
}

func (d *Dispatcher) begin(ctx context.Context, userID string) string {
	_, created, err := d.profiles.Create(ctx, userID)
	if err != nil {
		logger.ErrorCF("commands", "Failed to create user", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		return "sorry, something went wrong. please try again later"
	}
	if !created {
		return "hey, we're already connected! use `/help` to see what i can do"
	}

	if err := d.schedules.ScheduleUser(ctx, userID); err != nil {
		logger.ErrorCF("commands", "Failed to schedule new user", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
	}

	return "hey! im arjun, and ill help you stay productive\n\n" +
		"here's what we'll do:\n" +
		"- chat about your plans in the morning\n" +
		"- check in sometimes to see how things are going\n" +
		"- reflect on what you got done in the evening\n\n" +
		"type `/help` to see all the commands"
}

func (d *Dispatcher) showConfig(ctx context.Context, userID string) string {
	cfg, found, err := d.profiles.Get(ctx, userID)
	if err != nil {
		return userFacing(err)
	}
	if !found {
		return "use `/begin` to begin tracking first!"
	}

	clockify := "disabled"
	if cfg.ClockifyEnabled {
		clockify = "enabled"
	}

	return fmt.Sprintf("current settings:\n\n"+
		"morning check: %d:00 %s\n"+
		"evening review: %d:00 %s\n"+
		"weekly review: %s %d:00 %s\n"+
		"activity check probability: %.0f%%\n"+
		"clockify: %s",
		cfg.MorningCheckHour, cfg.Timezone,
		cfg.EveningReviewHour, cfg.Timezone,
		cfg.WeeklyReviewDay, cfg.WeeklyReviewHour, cfg.Timezone,
		cfg.ActivityCheckProbability*100,
		clockify)
}

// mutate applies a config change and reinstalls the user's triggers so
// the new times take effect immediately.
func (d *Dispatcher) mutate(ctx context.Context, userID string, apply func() error, confirmation string) string {
	if err := apply(); err != nil {
		return userFacing(err)
	}
	if err := d.schedules.RescheduleUser(ctx, userID); err != nil {
		logger.ErrorCF("commands", "Failed to reschedule user", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		return confirmation + " (warning: rescheduling failed, check your timezone setting)"
	}
	return confirmation
}

func (d *Dispatcher) setClockify(ctx context.Context, userID, apiKey string) string {
	if _, found, err := d.profiles.Get(ctx, userID); err != nil || !found {
		if err != nil {
			return userFacing(err)
		}
		return "use `/begin` to begin tracking first!"
	}

	if d.verifier != nil {
		if err := d.verifier.Verify(ctx, apiKey); err != nil {
			logger.WarnCF("commands", "Clockify key verification failed", map[string]any{
				"user_id": userID,
				"error":   err.Error(),
			})
			return "failed to connect to clockify. please check your api key"
		}
	}

	if err := d.profiles.SetClockify(ctx, userID, apiKey); err != nil {
		return userFacing(err)
	}
	return "clockify integration enabled"
}

func (d *Dispatcher) export(ctx context.Context, userID string) string {
	data, err := d.profiles.Export(ctx, userID)
	if err != nil {
		return userFacing(err)
	}
	return "here's everything i have stored for you:\n```json\n" + string(data) + "\n```"
}

func (d *Dispatcher) stop(ctx context.Context, userID string) string {
	_, found, err := d.profiles.Get(ctx, userID)
	if err != nil {
		return userFacing(err)
	}
	if !found {
		return "we haven't started yet! use `/begin` to begin"
	}

	d.schedules.CancelAllUserTriggers(userID)
	if err := d.profiles.Delete(ctx, userID); err != nil {
		logger.ErrorCF("commands", "Failed to delete user data", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		return "sorry, something went wrong. please try again later"
	}

	return "alr, taking a break\nuse `/begin` whenever you want to start again\nsee you around!"
}

func (d *Dispatcher) fireTrigger(ctx context.Context, userID, kindName string) string {
	var kind schedule.TriggerKind
	switch strings.ToLower(strings.TrimSpace(kindName)) {
	case "morning":
		kind = schedule.KindMorning
	case "evening":
		kind = schedule.KindEvening
	case "weekly":
		kind = schedule.KindWeekly
	case "activity":
		kind = schedule.KindActivity
	default:
		return "unknown check kind, use morning/evening/weekly/activity"
	}

	// The cycle blocks on the user's reply; run it off the command path.
	go d.trigger.HandleTrigger(context.WithoutCancel(ctx), userID, kind)
	return fmt.Sprintf("kk, firing the %s check now", kind)
}

func userFacing(err error) string {
	if err == profile.ErrUnknownUser {
		return "use `/begin` to begin tracking first!"
	}
	return err.Error()
}

const helpText = "hey! here's what i can help with:\n\n" +
	"**getting started**\n" +
	"`/begin` - start tracking your productivity\n" +
	"`/stop` - pause our check-ins\n\n" +
	"**daily planning**\n" +
	"`/config` - see your current settings\n" +
	"`/set_time` - change when i check in\n" +
	"`/set_check_probability` - how often i check what you're up to\n" +
	"`/set_timezone` - set your timezone\n\n" +
	"**weekly stuff**\n" +
	"`/set_weekly_review` - when to do weekly reviews\n\n" +
	"**time tracking**\n" +
	"`/set_clockify` - connect your clockify account\n" +
	"`/disable_clockify` - turn off clockify integration\n\n" +
	"**your data**\n" +
	"`/export_data` - get everything i have stored about you\n\n" +
	"i'll also:\n" +
	"- check in each morning about your plans\n" +
	"- see how you're doing throughout the day\n" +
	"- help review what you got done in the evening\n\n" +
	"just message me anytime if you want to chat about your work"
