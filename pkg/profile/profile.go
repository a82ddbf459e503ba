package profile

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// CheckType names a configurable check-in hour.
const (
	CheckMorning = "morning_check"
	CheckEvening = "evening_review"
)

// Weekday codes accepted by the weekly review setting.
var weekdayCodes = map[string]time.Weekday{
	"SUN": time.Sunday,
	"MON": time.Monday,
	"TUE": time.Tuesday,
	"WED": time.Wednesday,
	"THU": time.Thursday,
	"FRI": time.Friday,
	"SAT": time.Saturday,
}

// ParseWeekday maps a three-letter day code to a time.Weekday.
func ParseWeekday(code string) (time.Weekday, error) {
	day, ok := weekdayCodes[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return 0, fmt.Errorf("invalid day %q (use MON..SUN)", code)
	}
	return day, nil
}

// UserConfig is the per-user check-in configuration. Hours are 24-hour
// values validated at the write boundary; the scheduler trusts them.
type UserConfig struct {
	MorningCheckHour         int       `json:"morning_check_hour"`
	EveningReviewHour        int       `json:"evening_review_hour"`
	WeeklyReviewDay          string    `json:"weekly_review_day"`
	WeeklyReviewHour         int       `json:"weekly_review_hour"`
	ActivityCheckProbability float64   `json:"activity_check_probability"`
	Timezone                 string    `json:"timezone"`
	ClockifyAPIKey           string    `json:"clockify_api_key,omitempty"`
	ClockifyEnabled          bool      `json:"clockify_enabled"`
	JoinedAt                 time.Time `json:"joined_date"`
	LastInteraction          time.Time `json:"last_interaction,omitempty"`
}

// Location resolves the user's IANA timezone.
func (c UserConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// WeeklyWeekday resolves the stored weekly review day code.
func (c UserConfig) WeeklyWeekday() (time.Weekday, error) {
	return ParseWeekday(c.WeeklyReviewDay)
}

// ErrUnknownUser is returned for operations on users that never ran /begin.
var ErrUnknownUser = errors.New("user not tracked")

func validateHour(hour int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("invalid hour %d (use 0-23)", hour)
	}
	return nil
}

func clampProbability(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
