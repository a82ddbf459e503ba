package checkin

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arjunbot/arjun/pkg/bus"
	"github.com/arjunbot/arjun/pkg/memory"
	"github.com/arjunbot/arjun/pkg/profile"
	"github.com/arjunbot/arjun/pkg/schedule"
	"github.com/arjunbot/arjun/pkg/store"
)

type fakeMessenger struct {
	mu     sync.Mutex
	sent   []string
	notif  chan string
	onSend func()
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{notif: make(chan string, 16)}
}

func (f *fakeMessenger) SendDirectMessage(ctx context.Context, userID, text string) (string, error) {
	f.mu.Lock()
	f.sent = append(f.sent, text)
	n := len(f.sent)
	hook := f.onSend
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	f.notif <- text
	return fmt.Sprintf("msg-%d", n), nil
}

func (f *fakeMessenger) DirectChannel(userID string) string { return "discord" }

func (f *fakeMessenger) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeMessenger) waitForSend(t *testing.T) string {
	t.Helper()
	select {
	case text := <-f.notif:
		return text
	case <-time.After(2 * time.Second):
		t.Fatal("no message sent before deadline")
		return ""
	}
}

type fakeProvider struct {
	mu       sync.Mutex
	response string
	prompts  []string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, userMessage, systemPrompt string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, userMessage)
	return f.response
}

func (f *fakeProvider) promptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fixture struct {
	orch      *Orchestrator
	profiles  *profile.Manager
	memories  *memory.Store
	messenger *fakeMessenger
	provider  *fakeProvider
	bus       *bus.MessageBus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	docs, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	t.Cleanup(func() { docs.Close() })

	profiles := profile.NewManager(docs, profile.Defaults{
		MorningCheckHour:         9,
		EveningReviewHour:        21,
		WeeklyReviewDay:          "SUN",
		WeeklyReviewHour:         18,
		ActivityCheckProbability: 0.3,
		Timezone:                 "UTC",
	})
	memories := memory.NewStore(docs)
	messenger := newFakeMessenger()
	provider := &fakeProvider{response: "null"}
	msgBus := bus.NewMessageBus()
	t.Cleanup(msgBus.Close)

	orch := NewOrchestrator(profiles, memories, provider, messenger, msgBus)
	orch.timeout = 200 * time.Millisecond

	return &fixture{
		orch:      orch,
		profiles:  profiles,
		memories:  memories,
		messenger: messenger,
		provider:  provider,
		bus:       msgBus,
	}
}

func (fx *fixture) createUser(t *testing.T, userID string) {
	t.Helper()
	if _, _, err := fx.profiles.Create(context.Background(), userID); err != nil {
		t.Fatalf("Create user: %v", err)
	}
}

func TestHandleTrigger_UnknownUserSendsNothing(t *testing.T) {
	fx := newFixture(t)
	fx.orch.HandleTrigger(context.Background(), "ghost", schedule.KindMorning)
	if fx.messenger.sentCount() != 0 {
		t.Fatalf("sent %d messages for unknown user", fx.messenger.sentCount())
	}
}

func TestHandleTrigger_ActivityGateNeverFiresAtZero(t *testing.T) {
	fx := newFixture(t)
	fx.createUser(t, "u1")
	if err := fx.profiles.SetActivityProbability(context.Background(), "u1", 0); err != nil {
		t.Fatalf("SetActivityProbability: %v", err)
	}

	draws := []float64{0, 0.01, 0.5, 0.99}
	i := 0
	fx.orch.randFloat = func() float64 { d := draws[i%len(draws)]; i++; return d }

	for n := 0; n < 1000; n++ {
		fx.orch.HandleTrigger(context.Background(), "u1", schedule.KindActivity)
	}
	if fx.messenger.sentCount() != 0 {
		t.Fatalf("sent %d activity checks at probability 0", fx.messenger.sentCount())
	}
}

func TestHandleTrigger_ActivityGateAlwaysFiresAtOne(t *testing.T) {
	fx := newFixture(t)
	fx.createUser(t, "u1")
	if err := fx.profiles.SetActivityProbability(context.Background(), "u1", 1); err != nil {
		t.Fatalf("SetActivityProbability: %v", err)
	}
	fx.orch.randFloat = func() float64 { return 0.999999 }

	for i := 0; i < 5; i++ {
		fx.orch.HandleTrigger(context.Background(), "u1", schedule.KindActivity)
		fx.messenger.waitForSend(t)
	}
	if fx.messenger.sentCount() != 5 {
		t.Fatalf("sent %d activity checks at probability 1, want 5", fx.messenger.sentCount())
	}
}

func TestHandleTrigger_ActivityDoesNotAwaitReply(t *testing.T) {
	fx := newFixture(t)
	fx.createUser(t, "u1")
	fx.orch.randFloat = func() float64 { return 0 }

	done := make(chan struct{})
	go func() {
		fx.orch.HandleTrigger(context.Background(), "u1", schedule.KindActivity)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("activity trigger blocked waiting for a reply")
	}
	if fx.provider.promptCount() != 0 {
		t.Fatalf("provider invoked %d times for an unanswered activity check", fx.provider.promptCount())
	}
}

func TestHandleTrigger_MorningFlowRoundTrip(t *testing.T) {
	fx := newFixture(t)
	fx.createUser(t, "u1")
	fx.provider.response = "kk sounds like a solid plan\n<MEMORY>user is refactoring the billing service</MEMORY>"

	done := make(chan struct{})
	go func() {
		fx.orch.HandleTrigger(context.Background(), "u1", schedule.KindMorning)
		close(done)
	}()

	opener := fx.messenger.waitForSend(t)
	if opener == "" {
		t.Fatal("empty opener")
	}

	// Reply arrives while the cycle is waiting.
	for !fx.orch.claimReply("u1", "discord", "refactoring the billing service today") {
		time.Sleep(5 * time.Millisecond)
	}

	reply := fx.messenger.waitForSend(t)
	if strings.Contains(reply, "<MEMORY>") {
		t.Errorf("memory tags leaked to the user: %q", reply)
	}
	if reply != "kk sounds like a solid plan" {
		t.Errorf("reply = %q", reply)
	}

	<-done

	records := fx.memories.Memories(context.Background(), "u1")
	found := false
	for _, rec := range records {
		if rec.Content == "user is refactoring the billing service" && rec.Type == memory.TypeMorningPlans {
			found = true
		}
	}
	if !found {
		t.Errorf("extracted memory not stored; records = %+v", records)
	}
}

func TestHandleTrigger_NoReplySkipsModel(t *testing.T) {
	fx := newFixture(t)
	fx.createUser(t, "u1")

	done := make(chan struct{})
	go func() {
		fx.orch.HandleTrigger(context.Background(), "u1", schedule.KindEvening)
		close(done)
	}()

	fx.messenger.waitForSend(t)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cycle did not time out")
	}
	if fx.provider.promptCount() != 0 {
		t.Fatalf("provider invoked %d times without a reply", fx.provider.promptCount())
	}
	if fx.messenger.sentCount() != 1 {
		t.Fatalf("sent %d messages, want only the opener", fx.messenger.sentCount())
	}
}

func TestHandleTrigger_ReplyDuringSendIsClaimed(t *testing.T) {
	fx := newFixture(t)
	fx.createUser(t, "u1")
	fx.provider.response = "kk"

	// The user answers the instant the opener goes out. The waiter is
	// registered before the send, so the reply must land in this cycle
	// instead of being treated as freeform conversation.
	claimed := make(chan bool, 1)
	var once sync.Once
	fx.messenger.onSend = func() {
		once.Do(func() {
			claimed <- fx.orch.claimReply("u1", "discord", "already on it")
		})
	}

	fx.orch.HandleTrigger(context.Background(), "u1", schedule.KindMorning)

	if !<-claimed {
		t.Fatal("reply sent at opener time was not claimed by the cycle")
	}
	if fx.provider.promptCount() != 1 {
		t.Fatalf("provider invoked %d times, want 1", fx.provider.promptCount())
	}
}

func TestHandleTrigger_ReplyOnOtherChannelNotClaimed(t *testing.T) {
	fx := newFixture(t)
	fx.createUser(t, "u1")

	done := make(chan struct{})
	go func() {
		fx.orch.HandleTrigger(context.Background(), "u1", schedule.KindEvening)
		close(done)
	}()
	fx.messenger.waitForSend(t)

	// The check-in went out on discord; the same user talking on another
	// channel stays a freeform conversation.
	if fx.orch.claimReply("u1", "console", "done for today") {
		t.Error("reply from a different channel was claimed")
	}
	if !fx.orch.claimReply("u1", "discord", "done for today") {
		t.Error("reply on the check-in channel was not claimed")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cycle did not finish")
	}
}

func TestDeliverModelResponse_NullSentinelNotForwarded(t *testing.T) {
	fx := newFixture(t)
	fx.createUser(t, "u1")

	fx.orch.deliverModelResponse(context.Background(), "u1", "conversation",
		memory.TypeConversationSummary, "<MEMORY>user drinks tea</MEMORY>\nnull", nil)

	if fx.messenger.sentCount() != 0 {
		t.Fatalf("null response was forwarded: %v", fx.messenger.sent)
	}
	records := fx.memories.Memories(context.Background(), "u1")
	if len(records) != 1 || records[0].Content != "user drinks tea" {
		t.Fatalf("records = %+v", records)
	}
}

func TestHandleConversation_UntrackedUserIgnored(t *testing.T) {
	fx := newFixture(t)

	fx.orch.HandleInbound(context.Background(), bus.InboundMessage{
		Channel:  "discord",
		SenderID: "stranger",
		ChatID:   "c1",
		Content:  "hello?",
	})

	if fx.messenger.sentCount() != 0 {
		t.Fatalf("replied to untracked user: %v", fx.messenger.sent)
	}
	if fx.provider.promptCount() != 0 {
		t.Fatal("provider invoked for untracked user")
	}
}

func TestHandleConversation_EmbedsRelevantMemories(t *testing.T) {
	fx := newFixture(t)
	fx.createUser(t, "u1")
	fx.memories.AddMemory(context.Background(), "u1", memory.TypeMorningPlans, "working on the billing api")
	fx.provider.response = "going well i hope!"

	fx.orch.HandleInbound(context.Background(), bus.InboundMessage{
		Channel:  "discord",
		SenderID: "u1",
		ChatID:   "c1",
		Content:  "quick update on the billing api",
	})

	// Conversation replies go back over the bus to the originating chat.
	subCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, ok := fx.bus.SubscribeOutbound(subCtx)
	if !ok {
		t.Fatal("no outbound reply")
	}
	if out.Channel != "discord" || out.ChatID != "c1" {
		t.Errorf("reply routed to %s/%s", out.Channel, out.ChatID)
	}
	if out.Content != "going well i hope!" {
		t.Errorf("reply = %q", out.Content)
	}

	fx.provider.mu.Lock()
	prompt := fx.provider.prompts[0]
	fx.provider.mu.Unlock()
	if !strings.Contains(prompt, "working on the billing api") {
		t.Errorf("prompt does not embed the relevant memory:\n%s", prompt)
	}
}

func TestPickTemplate_KnownKindsNonEmpty(t *testing.T) {
	fx := newFixture(t)
	for _, kind := range []schedule.TriggerKind{
		schedule.KindMorning, schedule.KindEvening, schedule.KindWeekly, schedule.KindActivity,
	} {
		if fx.orch.pickTemplate(kind) == "" {
			t.Errorf("empty template for kind %s", kind)
		}
	}
}
