package channels

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/arjunbot/arjun/pkg/bus"
	"github.com/arjunbot/arjun/pkg/commands"
	"github.com/arjunbot/arjun/pkg/config"
	"github.com/arjunbot/arjun/pkg/logger"
)

const (
	sendTimeout = 10 * time.Second

	// Discord caps messages at 2000 characters; leave headroom so a
	// split never lands mid code block.
	discordChunkLimit = 1500
)

type DiscordChannel struct {
	*BaseChannel
	session    *discordgo.Session
	config     config.DiscordConfig
	dispatcher *commands.Dispatcher
}

func NewDiscordChannel(cfg config.DiscordConfig, messageBus *bus.MessageBus) (*DiscordChannel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	return &DiscordChannel{
		BaseChannel: NewBaseChannel("discord", messageBus, cfg.AllowFrom),
		session:     session,
		config:      cfg,
	}, nil
}

// SetCommandDispatcher wires slash commands. Must be called before Start.
func (c *DiscordChannel) SetCommandDispatcher(d *commands.Dispatcher) {
	c.dispatcher = d
}

func (c *DiscordChannel) Start(ctx context.Context) error {
	logger.InfoC("discord", "Starting Discord bot")

	c.session.AddHandler(c.handleMessage)
	c.session.AddHandler(c.handleInteraction)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	c.setRunning(true)

	botUser, err := c.session.User("@me")
	if err != nil {
		return fmt.Errorf("failed to get bot user: %w", err)
	}

	if err := c.registerCommands(botUser.ID); err != nil {
		logger.ErrorCF("discord", "Failed to register slash commands", map[string]any{
			"error": err.Error(),
		})
	}

	logger.InfoCF("discord", "Discord bot connected", map[string]any{
		"username": botUser.Username,
		"user_id":  botUser.ID,
	})
	return nil
}

func (c *DiscordChannel) Stop(ctx context.Context) error {
	logger.InfoC("discord", "Stopping Discord bot")
	c.setRunning(false)

	if err := c.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}
	return nil
}

func (c *DiscordChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("discord bot not running")
	}
	if msg.ChatID == "" {
		return fmt.Errorf("channel ID is empty")
	}
	if msg.Content == "" {
		return nil
	}

	for _, chunk := range splitMessage(msg.Content, discordChunkLimit) {
		if _, err := c.sendChunk(ctx, msg.ChatID, chunk); err != nil {
			return err
		}
	}
	return nil
}

// SendDirect opens the user's DM channel and delivers the text there. The
// returned id is the first chunk's message id.
func (c *DiscordChannel) SendDirect(ctx context.Context, userID, text string) (string, error) {
	if !c.IsRunning() {
		return "", fmt.Errorf("discord bot not running")
	}

	dm, err := c.session.UserChannelCreate(userID)
	if err != nil {
		return "", fmt.Errorf("failed to open dm channel: %w", err)
	}

	var firstID string
	for _, chunk := range splitMessage(text, discordChunkLimit) {
		id, err := c.sendChunk(ctx, dm.ID, chunk)
		if err != nil {
			return firstID, err
		}
		if firstID == "" {
			firstID = id
		}
	}
	return firstID, nil
}

func (c *DiscordChannel) sendChunk(ctx context.Context, channelID, content string) (string, error) {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	type result struct {
		id  string
		err error
	}
	done := make(chan result, 1)
	go func() {
		msg, err := c.session.ChannelMessageSend(channelID, content)
		if err != nil {
			done <- result{err: err}
			return
		}
		done <- result{id: msg.ID}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return "", fmt.Errorf("failed to send discord message: %w", res.err)
		}
		return res.id, nil
	case <-sendCtx.Done():
		return "", fmt.Errorf("send message timeout: %w", sendCtx.Err())
	}
}

// splitMessage breaks long content on newlines, then spaces, then hard at
// the limit.
func splitMessage(content string, limit int) []string {
	var messages []string

	for len(content) > 0 {
		if len(content) <= limit {
			messages = append(messages, content)
			break
		}

		msgEnd := lastBreak(content[:limit], '\n', 200)
		if msgEnd <= 0 {
			msgEnd = lastBreak(content[:limit], ' ', 100)
		}
		if msgEnd <= 0 {
			msgEnd = limit
		}

		messages = append(messages, content[:msgEnd])
		content = strings.TrimSpace(content[msgEnd:])
	}

	return messages
}

// lastBreak finds the last occurrence of sep within the trailing window.
func lastBreak(s string, sep byte, window int) int {
	start := len(s) - window
	if start < 0 {
		start = 0
	}
	for i := len(s) - 1; i >= start; i-- {
		if s[i] == sep {
			return i
		}
	}
	return -1
}

func (c *DiscordChannel) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Author == nil {
		return
	}
	if m.Author.ID == s.State.User.ID {
		return
	}
	// Only direct messages; the bot has no guild presence.
	if m.GuildID != "" {
		return
	}
	if !c.IsAllowed(m.Author.ID) {
		logger.DebugCF("discord", "Message rejected by allowlist", map[string]any{
			"user_id": m.Author.ID,
		})
		return
	}
	if m.Content == "" {
		return
	}

	logger.DebugCF("discord", "Received DM", map[string]any{
		"sender_id": m.Author.ID,
		"username":  m.Author.Username,
	})

	c.HandleMessage(m.Author.ID, m.ChannelID, m.Content, map[string]string{
		"message_id": m.ID,
		"username":   m.Author.Username,
	})
}

func (c *DiscordChannel) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if c.dispatcher == nil {
		return
	}

	user := i.User
	if user == nil && i.Member != nil {
		user = i.Member.User
	}
	if user == nil {
		return
	}
	if !c.IsAllowed(user.ID) {
		return
	}

	req, err := interactionRequest(user.ID, i.ApplicationCommandData())
	if err != nil {
		c.respond(s, i, err.Error())
		return
	}

	text := c.dispatcher.Handle(context.Background(), req)
	c.respond(s, i, text)
}

func (c *DiscordChannel) respond(s *discordgo.Session, i *discordgo.InteractionCreate, text string) {
	// Interaction responses have the same 2000 char cap as messages.
	if len(text) > 1990 {
		text = text[:1990] + "…"
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: text},
	})
	if err != nil {
		logger.ErrorCF("discord", "Failed to respond to interaction", map[string]any{
			"error": err.Error(),
		})
	}
}

// interactionRequest maps a slash command invocation onto a typed request.
func interactionRequest(userID string, data discordgo.ApplicationCommandInteractionData) (commands.Request, error) {
	req := commands.Request{UserID: userID}

	opts := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(data.Options))
	for _, opt := range data.Options {
		opts[opt.Name] = opt
	}

	switch data.Name {
	case "begin":
		req.Kind = commands.KindBegin
	case "config":
		req.Kind = commands.KindConfig
	case "help":
		req.Kind = commands.KindHelp
	case "stop":
		req.Kind = commands.KindStop
	case "export_data":
		req.Kind = commands.KindExportData
	case "disable_clockify":
		req.Kind = commands.KindDisableClockify
	case "set_time":
		req.Kind = commands.KindSetTime
		if opt, ok := opts["check_type"]; ok {
			req.Args.CheckType = opt.StringValue()
		}
		if opt, ok := opts["hour"]; ok {
			req.Args.Hour = int(opt.IntValue())
		}
	case "set_weekly_review":
		req.Kind = commands.KindSetWeeklyReview
		if opt, ok := opts["day"]; ok {
			req.Args.Day = opt.StringValue()
		}
		if opt, ok := opts["hour"]; ok {
			req.Args.Hour = int(opt.IntValue())
		}
	case "set_check_probability":
		req.Kind = commands.KindSetCheckProbability
		if opt, ok := opts["probability"]; ok {
			req.Args.Probability = opt.FloatValue()
		}
	case "set_timezone":
		req.Kind = commands.KindSetTimezone
		if opt, ok := opts["timezone"]; ok {
			req.Args.Timezone = opt.StringValue()
		}
	case "set_clockify":
		req.Kind = commands.KindSetClockify
		if opt, ok := opts["api_key"]; ok {
			req.Args.APIKey = opt.StringValue()
		}
	case "trigger_check":
		req.Kind = commands.KindTriggerCheck
		if opt, ok := opts["kind"]; ok {
			req.Args.TriggerKind = opt.StringValue()
		}
	default:
		return req, fmt.Errorf("unknown command /%s", data.Name)
	}

	return req, nil
}

func (c *DiscordChannel) registerCommands(appID string) error {
	for _, def := range commandDefinitions() {
		if _, err := c.session.ApplicationCommandCreate(appID, "", def); err != nil {
			return fmt.Errorf("register /%s: %w", def.Name, err)
		}
	}
	return nil
}

func commandDefinitions() []*discordgo.ApplicationCommand {
	checkTypeChoices := []*discordgo.ApplicationCommandOptionChoice{
		{Name: "morning check", Value: "morning_check"},
		{Name: "evening review", Value: "evening_review"},
	}
	dayChoices := make([]*discordgo.ApplicationCommandOptionChoice, 0, 7)
	for _, day := range []string{"MON", "TUE", "WED", "THU", "FRI", "SAT", "SUN"} {
		dayChoices = append(dayChoices, &discordgo.ApplicationCommandOptionChoice{Name: day, Value: day})
	}
	kindChoices := []*discordgo.ApplicationCommandOptionChoice{
		{Name: "morning", Value: "morning"},
		{Name: "evening", Value: "evening"},
		{Name: "weekly", Value: "weekly"},
		{Name: "activity", Value: "activity"},
	}

	hourOption := func(desc string) *discordgo.ApplicationCommandOption {
		minHour := float64(0)
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        "hour",
			Description: desc,
			Required:    true,
			MinValue:    &minHour,
			MaxValue:    23,
		}
	}

	minProb := float64(0)

	return []*discordgo.ApplicationCommand{
		{Name: "begin", Description: "start productivity tracking"},
		{Name: "config", Description: "show your current settings"},
		{Name: "help", Description: "list everything the bot can do"},
		{Name: "stop", Description: "pause check-ins and delete your data"},
		{Name: "export_data", Description: "export everything stored about you"},
		{Name: "disable_clockify", Description: "turn off clockify integration"},
		{
			Name:        "set_time",
			Description: "change when a daily check-in happens",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "check_type",
					Description: "which check-in to move",
					Required:    true,
					Choices:     checkTypeChoices,
				},
				hourOption("hour of day (0-23) in your timezone"),
			},
		},
		{
			Name:        "set_weekly_review",
			Description: "change when the weekly review happens",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "day",
					Description: "day of week",
					Required:    true,
					Choices:     dayChoices,
				},
				hourOption("hour of day (0-23) in your timezone"),
			},
		},
		{
			Name:        "set_check_probability",
			Description: "how often random activity checks fire",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionNumber,
					Name:        "probability",
					Description: "0.0 (never) to 1.0 (every eligible hour)",
					Required:    true,
					MinValue:    &minProb,
					MaxValue:    1,
				},
			},
		},
		{
			Name:        "set_timezone",
			Description: "set your timezone",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "timezone",
					Description: "IANA name, e.g. Europe/Berlin",
					Required:    true,
				},
			},
		},
		{
			Name:        "set_clockify",
			Description: "connect your clockify account",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "api_key",
					Description: "clockify api key",
					Required:    true,
				},
			},
		},
		{
			Name:        "trigger_check",
			Description: "fire a check-in right now (debug)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "kind",
					Description: "which check to fire",
					Required:    true,
					Choices:     kindChoices,
				},
			},
		},
	}
}
