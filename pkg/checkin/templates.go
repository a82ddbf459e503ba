package checkin

import "github.com/arjunbot/arjun/pkg/schedule"

// Outbound check-in openers. Casual and direct on purpose; weekly has a
// single fixed message.
var morningMessages = []string{
	"hey, what are you planning to work on today?",
	"what are you thinking of getting done today?",
	"hey there, what's the plan for today?",
}

var eveningMessages = []string{
	"hey, how did your day go?",
	"what did you end up working on today?",
	"how was your day? what worked/didnt work?",
	"lets review what you got done today",
}

var activityMessages = []string{
	"what are you working on rn?",
	"hey, hows the current task going?",
	"quick check - what are you up to?",
}

const weeklyMessage = "Time for our weekly review! How did your week go?"

func (o *Orchestrator) pickTemplate(kind schedule.TriggerKind) string {
	switch kind {
	case schedule.KindMorning:
		return morningMessages[o.randIndex(len(morningMessages))]
	case schedule.KindEvening:
		return eveningMessages[o.randIndex(len(eveningMessages))]
	case schedule.KindActivity:
		return activityMessages[o.randIndex(len(activityMessages))]
	case schedule.KindWeekly:
		return weeklyMessage
	}
	return ""
}
