package channels

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/arjunbot/arjun/pkg/bus"
	"github.com/arjunbot/arjun/pkg/commands"
	"github.com/arjunbot/arjun/pkg/logger"
)

// ConsoleUserID is the fixed identity of the local terminal user.
const ConsoleUserID = "console"

// ConsoleChannel is a local REPL over stdin. Lines starting with "/" are
// commands handled inline; everything else flows through the bus like a
// DM would. Mostly useful for development without a Discord token.
type ConsoleChannel struct {
	*BaseChannel
	dispatcher *commands.Dispatcher
	rl         *readline.Instance
}

func NewConsoleChannel(messageBus *bus.MessageBus) *ConsoleChannel {
	return &ConsoleChannel{
		BaseChannel: NewBaseChannel("console", messageBus, nil),
	}
}

func (c *ConsoleChannel) SetCommandDispatcher(d *commands.Dispatcher) {
	c.dispatcher = d
}

func (c *ConsoleChannel) Start(ctx context.Context) error {
	rl, err := readline.New("you> ")
	if err != nil {
		return fmt.Errorf("failed to init readline: %w", err)
	}
	c.rl = rl
	c.setRunning(true)

	go c.readLoop(ctx)

	logger.InfoC("console", "Console channel started, type /help to begin")
	return nil
}

func (c *ConsoleChannel) Stop(ctx context.Context) error {
	c.setRunning(false)
	if c.rl != nil {
		return c.rl.Close()
	}
	return nil
}

func (c *ConsoleChannel) readLoop(ctx context.Context) {
	for {
		line, err := c.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF || err != nil {
			return
		}
		if ctx.Err() != nil {
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			c.runCommand(ctx, line)
			continue
		}

		c.HandleMessage(ConsoleUserID, ConsoleUserID, line, nil)
	}
}

func (c *ConsoleChannel) runCommand(ctx context.Context, line string) {
	if c.dispatcher == nil {
		c.print("commands are not available")
		return
	}
	req, err := commands.ParseSlashLine(ConsoleUserID, line)
	if err != nil {
		c.print(err.Error())
		return
	}
	c.print(c.dispatcher.Handle(ctx, req))
}

func (c *ConsoleChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("console channel not running")
	}
	c.print(msg.Content)
	return nil
}

func (c *ConsoleChannel) SendDirect(ctx context.Context, userID, text string) (string, error) {
	if userID != ConsoleUserID {
		return "", fmt.Errorf("console channel cannot reach user %s", userID)
	}
	c.print(text)
	return ConsoleUserID, nil
}

func (c *ConsoleChannel) print(text string) {
	var w io.Writer = c.rl.Stdout()
	fmt.Fprintf(w, "arjun> %s\n", text)
}
