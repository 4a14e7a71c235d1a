package router

import (
	"context"
	"time"

	kit "slabot/internal/transport"
	logx "slabot/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	// AccessAdmin requires an admin chat or an owner user.
	AccessAdmin
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Access      Access
	Timeout     time.Duration // optional per-command override
	Handle      HandlerFunc
}

type Request struct {
	Message      *kit.Message
	Chat         kit.ChatTarget
	FromID       int64
	FromUsername string
	Command      string
	Args         []string
	ReqID        string
	Admin        bool

	Logger logx.Logger
	sender kit.Sender
}

// Reply sends plain text back to the request's chat/thread.
func (r *Request) Reply(ctx context.Context, text string) error {
	return r.reply(ctx, text, &kit.SendOptions{DisablePreview: true})
}

// ReplyMarkdown sends text rendered as Telegram Markdown.
func (r *Request) ReplyMarkdown(ctx context.Context, text string) error {
	return r.reply(ctx, text, &kit.SendOptions{ParseMode: kit.Markdown, DisablePreview: true})
}

func (r *Request) ReplyHTML(ctx context.Context, text string) error {
	return r.reply(ctx, text, &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
}

func (r *Request) reply(ctx context.Context, text string, opt *kit.SendOptions) error {
	_, err := r.sender.SendText(ctx, r.Chat, text, opt)
	return err
}
