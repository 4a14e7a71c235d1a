package adapter

import (
	"context"

	"github.com/cespare/xxhash/v2"
	tele "gopkg.in/telebot.v4"

	kit "slabot/internal/transport"
	logx "slabot/pkg/logx"
)

const (
	maxMenuCommands    = 100
	maxMenuDescription = 256
)

// UpdateMenuCommands publishes the bot's command menu (setMyCommands).
// It only calls Telegram when the list changed since the last success.
func (a *Adapter) UpdateMenuCommands(ctx context.Context, cmds []kit.BotCommand) error {
	a.menuMu.Lock()
	defer a.menuMu.Unlock()

	list := menuCommands(cmds)
	sum := menuHash(list)
	if sum == a.menuHash {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.bot.SetCommands(list); err != nil {
		return err
	}
	a.menuHash = sum
	a.log.Info("menu commands updated", logx.Int("count", len(list)))
	return nil
}

func menuCommands(cmds []kit.BotCommand) []tele.Command {
	out := make([]tele.Command, 0, len(cmds))
	for _, c := range cmds {
		if c.Command == "" {
			continue
		}
		d := c.Description
		if d == "" {
			d = c.Command
		}
		if r := []rune(d); len(r) > maxMenuDescription {
			d = string(r[:maxMenuDescription])
		}
		out = append(out, tele.Command{Text: c.Command, Description: d})
		if len(out) >= maxMenuCommands {
			break
		}
	}
	return out
}

func menuHash(cmds []tele.Command) uint64 {
	h := xxhash.New()
	for _, c := range cmds {
		_, _ = h.WriteString(c.Text)
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(c.Description)
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}
