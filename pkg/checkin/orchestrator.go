package checkin

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/arjunbot/arjun/pkg/bus"
	"github.com/arjunbot/arjun/pkg/logger"
	"github.com/arjunbot/arjun/pkg/memory"
	"github.com/arjunbot/arjun/pkg/profile"
	"github.com/arjunbot/arjun/pkg/providers"
	"github.com/arjunbot/arjun/pkg/schedule"
)

// replyTimeout bounds how long a morning/evening cycle waits for the
// user's answer before giving up without a model invocation.
const replyTimeout = 5 * time.Minute

// historyWindow is how many recent history entries a freeform
// conversation prompt embeds.
const historyWindow = 10

// Messenger delivers direct messages to users. The returned handle
// identifies the delivery (platform message id or equivalent).
// DirectChannel names the channel a user's direct messages travel on, so
// a check-in cycle can match the reply to the channel it asked on.
type Messenger interface {
	SendDirectMessage(ctx context.Context, userID, text string) (string, error)
	DirectChannel(userID string) string
}

// Orchestrator drives the per-trigger check-in state machine: gate,
// compose, send, await reply, invoke the model, extract memories, reply.
// Each cycle runs to completion independently; cycles for different users
// or kinds may be in flight concurrently.
type Orchestrator struct {
	profiles  *profile.Manager
	memories  *memory.Store
	provider  providers.Provider
	messenger Messenger
	bus       *bus.MessageBus

	timeout   time.Duration
	randFloat func() float64
	randIndex func(n int) int

	wmu     sync.Mutex
	waiters map[waiterKey]chan string
}

// waiterKey scopes a pending reply to the user and the channel the
// check-in went out on; the same user talking on another channel stays a
// freeform conversation.
type waiterKey struct {
	userID  string
	channel string
}

func NewOrchestrator(profiles *profile.Manager, memories *memory.Store, provider providers.Provider, messenger Messenger, msgBus *bus.MessageBus) *Orchestrator {
	return &Orchestrator{
		profiles:  profiles,
		memories:  memories,
		provider:  provider,
		messenger: messenger,
		bus:       msgBus,
		timeout:   replyTimeout,
		randFloat: rand.Float64,
		randIndex: rand.Intn,
		waiters:   make(map[waiterKey]chan string),
	}
}

// Run consumes inbound messages until the context is cancelled. Replies
// claimed by a waiting check-in cycle are routed there; everything else
// is a freeform conversation.
func (o *Orchestrator) Run(ctx context.Context) {
	logger.InfoC("checkin", "Orchestrator started")
	for {
		msg, ok := o.bus.ConsumeInbound(ctx)
		if !ok {
			logger.InfoC("checkin", "Orchestrator stopped")
			return
		}
		go o.HandleInbound(ctx, msg)
	}
}

// HandleInbound routes one inbound user message.
func (o *Orchestrator) HandleInbound(ctx context.Context, msg bus.InboundMessage) {
	if o.claimReply(msg.SenderID, msg.Channel, msg.Content) {
		return
	}
	o.handleConversation(ctx, msg)
}

// HandleTrigger runs one check-in cycle for (userID, kind). Every failure
// is logged and degrades; a trigger handler never crashes the process.
func (o *Orchestrator) HandleTrigger(ctx context.Context, userID string, kind schedule.TriggerKind) {
	cfg, found, err := o.profiles.Get(ctx, userID)
	if err != nil {
		logger.ErrorCF("checkin", "Failed to load user config", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		return
	}
	if !found {
		logger.WarnCF("checkin", "Trigger fired for unknown user", map[string]any{
			"user_id": userID,
			"kind":    string(kind),
		})
		return
	}

	if kind == schedule.KindActivity {
		if o.randFloat() >= cfg.ActivityCheckProbability {
			return
		}
	}

	text := o.pickTemplate(kind)
	if text == "" {
		return
	}

	// The waiter must exist before the opener leaves, so a reply landing
	// the instant the user sees it cannot be misread as freeform chat.
	awaited := kind == schedule.KindMorning || kind == schedule.KindEvening
	channel := o.messenger.DirectChannel(userID)
	var replyCh chan string
	if awaited {
		replyCh = o.registerWaiter(userID, channel)
	}

	if _, err := o.messenger.SendDirectMessage(ctx, userID, text); err != nil {
		if awaited {
			o.releaseWaiter(userID, channel, replyCh)
		}
		logger.ErrorCF("checkin", "Failed to send check-in", map[string]any{
			"user_id": userID,
			"kind":    string(kind),
			"error":   err.Error(),
		})
		return
	}
	o.appendHistory(ctx, userID, string(kind), "assistant", text)

	// Ambient capture: a scheduled message only becomes a memory when it
	// carries signal on its own.
	if memory.Importance(text) > 0 {
		o.memories.AddMemory(ctx, userID, typeTagFor(kind), text)
	}

	if !awaited {
		return
	}

	reply, ok := o.awaitReply(ctx, userID, channel, replyCh)
	if !ok {
		logger.DebugCF("checkin", "No reply before timeout", map[string]any{
			"user_id": userID,
			"kind":    string(kind),
		})
		return
	}
	o.appendHistory(ctx, userID, string(kind), "user", reply)

	response := o.provider.Complete(ctx, checkinPrompt(kind, reply), personaSystemPrompt)
	o.deliverModelResponse(ctx, userID, string(kind), typeTagFor(kind), response, nil)
}

func (o *Orchestrator) handleConversation(ctx context.Context, msg bus.InboundMessage) {
	userID := msg.SenderID

	_, found, err := o.profiles.Get(ctx, userID)
	if err != nil {
		logger.ErrorCF("checkin", "Failed to load user config", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		return
	}
	if !found {
		// Only tracked users get conversation handling; others must /begin.
		return
	}

	if err := o.profiles.TouchInteraction(ctx, userID); err != nil {
		logger.WarnCF("checkin", "Failed to update last interaction", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
	o.appendHistory(ctx, userID, "conversation", "user", msg.Content)

	relevant := o.memories.RelevantMemories(ctx, userID, msg.Content, 0)
	history, err := o.profiles.History(ctx, userID, historyWindow)
	if err != nil {
		logger.WarnCF("checkin", "Failed to load history", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
	}

	prompt := conversationPrompt(msg.Content, relevant, history)
	response := o.provider.Complete(ctx, prompt, personaSystemPrompt)
	o.deliverModelResponse(ctx, userID, "conversation", memory.TypeConversationSummary, response, &msg)
}

// deliverModelResponse extracts memory blocks, stores each one, and sends
// whatever cleaned text remains unless it is empty or the null sentinel.
// Replies to an inbound message go back over the bus to the originating
// chat; proactive messages go out as direct messages.
func (o *Orchestrator) deliverModelResponse(ctx context.Context, userID, kind, typeTag, response string, origin *bus.InboundMessage) {
	blocks, cleaned := ExtractMemories(response)
	for _, block := range blocks {
		o.memories.AddMemory(ctx, userID, typeTag, block)
	}

	if cleaned == "" || IsNullSentinel(cleaned) {
		return
	}

	if origin != nil {
		o.bus.PublishOutbound(bus.OutboundMessage{
			Channel: origin.Channel,
			ChatID:  origin.ChatID,
			Content: cleaned,
		})
	} else if _, err := o.messenger.SendDirectMessage(ctx, userID, cleaned); err != nil {
		logger.ErrorCF("checkin", "Failed to send reply", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		return
	}
	o.appendHistory(ctx, userID, kind, "assistant", cleaned)
}

// registerWaiter claims the reply slot for (userID, channel), superseding
// any stale waiter for the same slot.
func (o *Orchestrator) registerWaiter(userID, channel string) chan string {
	key := waiterKey{userID: userID, channel: channel}
	ch := make(chan string, 1)

	o.wmu.Lock()
	if old, exists := o.waiters[key]; exists {
		close(old)
	}
	o.waiters[key] = ch
	o.wmu.Unlock()
	return ch
}

func (o *Orchestrator) releaseWaiter(userID, channel string, ch chan string) {
	key := waiterKey{userID: userID, channel: channel}
	o.wmu.Lock()
	if o.waiters[key] == ch {
		delete(o.waiters, key)
	}
	o.wmu.Unlock()
}

// awaitReply suspends this cycle until the user's next message on the
// same channel, the timeout, or cancellation. Only this cycle waits;
// other users and other kinds keep processing.
func (o *Orchestrator) awaitReply(ctx context.Context, userID, channel string, ch chan string) (string, bool) {
	defer o.releaseWaiter(userID, channel, ch)

	timer := time.NewTimer(o.timeout)
	defer timer.Stop()

	select {
	case reply, ok := <-ch:
		if !ok || reply == "" {
			return "", false
		}
		return reply, true
	case <-timer.C:
		return "", false
	case <-ctx.Done():
		return "", false
	}
}

func (o *Orchestrator) claimReply(userID, channel, content string) bool {
	key := waiterKey{userID: userID, channel: channel}

	o.wmu.Lock()
	defer o.wmu.Unlock()

	ch, ok := o.waiters[key]
	if !ok {
		return false
	}
	delete(o.waiters, key)
	ch <- content
	return true
}

func (o *Orchestrator) appendHistory(ctx context.Context, userID, kind, role, content string) {
	if err := o.profiles.AppendHistory(ctx, userID, kind, role, content); err != nil {
		logger.WarnCF("checkin", "Failed to append history", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
}

func typeTagFor(kind schedule.TriggerKind) string {
	switch kind {
	case schedule.KindMorning:
		return memory.TypeMorningPlans
	case schedule.KindEvening:
		return memory.TypeEveningReview
	case schedule.KindWeekly:
		return memory.TypeWeeklyReview
	case schedule.KindActivity:
		return memory.TypeActivityCheck
	}
	return memory.TypeConversationSummary
}
