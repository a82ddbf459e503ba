package memory

import (
	"regexp"
	"strings"
	"time"
)

// Record is one durable fact about a user. Records are appended, never
// mutated in place; the collection is rewritten as a whole on each append.
type Record struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Type       string    `json:"type"`
	Content    string    `json:"content"`
	Importance int       `json:"importance"`
}

// Record type tags used by the check-in flows.
const (
	TypeMorningPlans        = "morning_plans"
	TypeEveningReview       = "evening_review"
	TypeWeeklyReview        = "weekly_review"
	TypeActivityCheck       = "activity_check"
	TypeConversationSummary = "conversation_summary"
)

// importanceKeywords is the tunable signal list for scoring. Both scores
// are deliberately plain keyword/word-overlap heuristics so "why was this
// remembered" is always auditable; no embeddings, no external calls.
var importanceKeywords = []string{
	"goal",
	"deadline",
	"completed",
	"failed",
	"milestone",
	"project",
	"blocked",
	"finished",
	"shipped",
	"launched",
	"decision",
	"priority",
	"habit",
	"learned",
}

// Importance counts case-insensitive occurrences of the keyword set.
// Zero means the content carries no productivity signal; ambient messages
// scoring zero are not persisted on the store's own initiative.
func Importance(content string) int {
	lower := strings.ToLower(content)
	score := 0
	for _, kw := range importanceKeywords {
		score += strings.Count(lower, kw)
	}
	return score
}

var wordSplitRegex = regexp.MustCompile(`\W+`)

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range wordSplitRegex.Split(strings.ToLower(text), -1) {
		if w == "" {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

// Relevance is the size of the intersection of the lower-cased word sets
// of content and query. Unique-word overlap, not occurrence count.
func Relevance(content, query string) int {
	queryWords := wordSet(query)
	count := 0
	for w := range wordSet(content) {
		if _, ok := queryWords[w]; ok {
			count++
		}
	}
	return count
}
