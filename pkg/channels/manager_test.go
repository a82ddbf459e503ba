package channels

import (
	"testing"

	"github.com/arjunbot/arjun/pkg/bus"
	"github.com/arjunbot/arjun/pkg/config"
)

func newConsoleManager(t *testing.T) *Manager {
	t.Helper()
	msgBus := bus.NewMessageBus()
	t.Cleanup(msgBus.Close)

	m, err := NewManager(config.DefaultConfig(), msgBus, true)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestNewManager_RequiresAChannel(t *testing.T) {
	msgBus := bus.NewMessageBus()
	t.Cleanup(msgBus.Close)

	if _, err := NewManager(config.DefaultConfig(), msgBus, false); err == nil {
		t.Fatal("expected an error with no token and no console")
	}
}

func TestManager_DirectChannelRouting(t *testing.T) {
	m := newConsoleManager(t)

	if got := m.DirectChannel(ConsoleUserID); got != "console" {
		t.Errorf("DirectChannel(console) = %q", got)
	}
	if got := m.DirectChannel("123456789"); got != "discord" {
		t.Errorf("DirectChannel(discord user) = %q", got)
	}
}

func TestManager_GetStatusReportsChannels(t *testing.T) {
	m := newConsoleManager(t)

	status := m.GetStatus()
	entry, ok := status["console"].(map[string]any)
	if !ok {
		t.Fatalf("status = %+v, want a console entry", status)
	}
	if entry["running"] != false {
		t.Errorf("console reported running before StartAll: %+v", entry)
	}
	if _, exists := status["discord"]; exists {
		t.Error("discord reported without a token")
	}
}
