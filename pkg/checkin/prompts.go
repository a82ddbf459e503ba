package checkin

import (
	"fmt"
	"strings"

	"github.com/arjunbot/arjun/pkg/memory"
	"github.com/arjunbot/arjun/pkg/profile"
	"github.com/arjunbot/arjun/pkg/schedule"
)

const personaSystemPrompt = `You are Arjun, a friendly and thoughtful assistant focused on productivity and learning.

Communication style:
- direct and concise, casual language, lowercase and minimal punctuation
- use "kk" and "alr" as acknowledgments sometimes
- break complex thoughts into numbered points
- ask clarifying questions to better understand
- encouraging but not overly enthusiastic

When something is worth remembering about the user, wrap each individual fact in <MEMORY>...</MEMORY> tags. Facts should be short, self-contained sentences about the user.
If you have nothing to say beyond memory tags, respond with exactly: null`

const memoryInstruction = "note anything worth remembering in <MEMORY>...</MEMORY> tags"

// checkinPrompt frames the user's reply for the two check-in kinds that
// wait for one. Weekly and activity checks never reach the model from a
// trigger; anything the user says after them is a freeform conversation.
func checkinPrompt(kind schedule.TriggerKind, reply string) string {
	if kind == schedule.KindMorning {
		return fmt.Sprintf(`The user is sharing their plan for today: %s

Your role:
1. review their plan briefly but thoughtfully
2. ask any clarifying questions if needed
3. maybe suggest practical improvements
4. %s

keep it casual but focused on helping them have a productive day`, reply, memoryInstruction)
	}
	return fmt.Sprintf(`The user is sharing about their day: %s

Your role:
1. listen and understand what they did
2. help them reflect on what worked/didnt work
3. %s

keep the tone casual but thoughtful. focus on learning and improvement rather than just praise`, reply, memoryInstruction)
}

// conversationPrompt embeds ranked relevant memories and recent history
// for a freeform DM outside the scheduled flows.
func conversationPrompt(content string, memories []memory.Record, history []profile.HistoryEntry) string {
	var b strings.Builder

	if len(memories) > 0 {
		b.WriteString("What you remember about the user:\n")
		for _, rec := range memories {
			fmt.Fprintf(&b, "- [%s] %s\n", rec.Type, rec.Content)
		}
		b.WriteString("\n")
	}

	if len(history) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, entry := range history {
			fmt.Fprintf(&b, "%s: %s\n", entry.Role, entry.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, `The user has sent this message: %s

Respond appropriately: give relevant feedback, ask clarifying questions if needed, and %s.`, content, memoryInstruction)

	return b.String()
}
