package channels

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/arjunbot/arjun/pkg/bus"
	"github.com/arjunbot/arjun/pkg/commands"
	"github.com/arjunbot/arjun/pkg/config"
	"github.com/arjunbot/arjun/pkg/logger"
)

type Manager struct {
	channels     map[string]Channel
	bus          *bus.MessageBus
	config       *config.Config
	dispatchTask *asyncTask
	mu           sync.RWMutex
}

type asyncTask struct {
	cancel context.CancelFunc
}

// NewManager builds the enabled channels from config. At least one of
// Discord (token set) or the console (enableConsole) must be available.
func NewManager(cfg *config.Config, messageBus *bus.MessageBus, enableConsole bool) (*Manager, error) {
	m := &Manager{
		channels: make(map[string]Channel),
		bus:      messageBus,
		config:   cfg,
	}

	if err := m.initChannels(enableConsole); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) initChannels(enableConsole bool) error {
	logger.InfoC("channels", "Initializing channel manager")

	if strings.TrimSpace(m.config.Channels.Discord.Token) != "" {
		discord, err := NewDiscordChannel(m.config.Channels.Discord, m.bus)
		if err != nil {
			return fmt.Errorf("initialize Discord channel: %w", err)
		}
		m.channels["discord"] = discord
		logger.InfoC("channels", "Discord channel initialized")
	}

	if enableConsole {
		m.channels["console"] = NewConsoleChannel(m.bus)
		logger.InfoC("channels", "Console channel initialized")
	}

	if len(m.channels) == 0 {
		return fmt.Errorf("no channels enabled: set channels.discord.token or run with --console")
	}

	logger.InfoCF("channels", "Channel initialization completed", map[string]any{
		"enabled_channels": len(m.channels),
	})
	return nil
}

// SetCommandDispatcher hands the command dispatcher to every channel that
// exposes a command surface. Must be called before StartAll.
func (m *Manager) SetCommandDispatcher(d *commands.Dispatcher) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type commandCapable interface {
		SetCommandDispatcher(*commands.Dispatcher)
	}
	for _, channel := range m.channels {
		if cc, ok := channel.(commandCapable); ok {
			cc.SetCommandDispatcher(d)
		}
	}
}

func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	channelsCopy := make(map[string]Channel, len(m.channels))
	for name, channel := range m.channels {
		channelsCopy[name] = channel
	}
	m.mu.RUnlock()

	logger.InfoC("channels", "Starting all channels")

	var started []string
	var startErrors []string
	for name, channel := range channelsCopy {
		if err := channel.Start(ctx); err != nil {
			logger.ErrorCF("channels", "Failed to start channel", map[string]any{
				"channel": name,
				"error":   err.Error(),
			})
			startErrors = append(startErrors, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		started = append(started, name)
	}

	if len(startErrors) > 0 {
		for _, name := range started {
			if err := channelsCopy[name].Stop(ctx); err != nil {
				logger.WarnCF("channels", "Failed to stop partially-started channel", map[string]any{
					"channel": name,
					"error":   err.Error(),
				})
			}
		}
		return fmt.Errorf("failed to start channels: %s", strings.Join(startErrors, "; "))
	}

	dispatchCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	if m.dispatchTask != nil {
		m.dispatchTask.cancel()
	}
	m.dispatchTask = &asyncTask{cancel: cancel}
	m.mu.Unlock()

	go m.dispatchOutbound(dispatchCtx)

	logger.InfoCF("channels", "All channels started", map[string]any{
		"count": len(started),
	})
	return nil
}

func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	logger.InfoC("channels", "Stopping all channels")

	if m.dispatchTask != nil {
		m.dispatchTask.cancel()
		m.dispatchTask = nil
	}

	for name, channel := range m.channels {
		if err := channel.Stop(ctx); err != nil {
			logger.ErrorCF("channels", "Error stopping channel", map[string]any{
				"channel": name,
				"error":   err.Error(),
			})
		}
	}

	logger.InfoC("channels", "All channels stopped")
	return nil
}

func (m *Manager) dispatchOutbound(ctx context.Context) {
	logger.InfoC("channels", "Outbound dispatcher started")

	for {
		msg, ok := m.bus.SubscribeOutbound(ctx)
		if !ok {
			logger.InfoC("channels", "Outbound dispatcher stopped")
			return
		}

		m.mu.RLock()
		channel, exists := m.channels[msg.Channel]
		m.mu.RUnlock()

		if !exists {
			logger.WarnCF("channels", "Unknown channel for outbound message", map[string]any{
				"channel": msg.Channel,
			})
			continue
		}

		if err := channel.Send(ctx, msg); err != nil {
			logger.ErrorCF("channels", "Error sending message to channel", map[string]any{
				"channel": msg.Channel,
				"error":   err.Error(),
			})
		}
	}
}

// DirectChannel names the channel that owns a user's direct messages:
// the console identity lives on the console, everyone else on Discord.
func (m *Manager) DirectChannel(userID string) string {
	if userID == ConsoleUserID {
		return "console"
	}
	return "discord"
}

// SendDirectMessage routes a proactive message to the channel that owns
// the user.
func (m *Manager) SendDirectMessage(ctx context.Context, userID, text string) (string, error) {
	name := m.DirectChannel(userID)

	m.mu.RLock()
	channel, exists := m.channels[name]
	m.mu.RUnlock()

	if !exists {
		return "", fmt.Errorf("channel %s not available for user %s", name, userID)
	}
	if !channel.IsRunning() {
		return "", fmt.Errorf("channel %s not running", name)
	}
	return channel.SendDirect(ctx, userID, text)
}

func (m *Manager) GetStatus() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := make(map[string]any)
	for name, channel := range m.channels {
		status[name] = map[string]any{
			"enabled": true,
			"running": channel.IsRunning(),
		}
	}
	return status
}
