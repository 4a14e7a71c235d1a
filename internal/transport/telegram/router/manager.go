package router

import (
	"context"
	"runtime"
	"runtime/debug"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	rtsup "slabot/internal/runtime/supervisor"
	"slabot/internal/storage"
	kit "slabot/internal/transport"
	logx "slabot/pkg/logx"
)

const (
	unknownReply   = "unknown command. try /help"
	forbiddenReply = "Forbidden! This command is for admins only."
	busyReply      = "busy, try again"
)

type Config struct {
	Workers        int           // default max(2, NumCPU)
	QueueSize      int           // default 256
	DefaultTimeout time.Duration // applied when a command sets none
	BotUsername    string        // commands addressed to another bot are ignored
}

// CommandManager routes incoming messages to commands on a bounded worker pool.
type CommandManager struct {
	cfg     Config
	log     logx.Logger
	adapter kit.Adapter
	audit   storage.Store

	mu         sync.RWMutex
	cmds       map[string]*Command // name and aliases
	list       []Command           // registration order, help included
	adminChats []int64
	ownerUsers []int64

	runMu   sync.Mutex
	running bool
	sup     *rtsup.Supervisor

	jobs chan func()
}

func NewCommandManager(log logx.Logger, adapter kit.Adapter, audit storage.Store, cfg Config) *CommandManager {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = max(2, runtime.NumCPU())
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if audit == nil {
		audit = storage.Nop{}
	}
	return &CommandManager{
		cfg:     cfg,
		log:     log,
		adapter: adapter,
		audit:   audit,
		cmds:    map[string]*Command{},
		jobs:    make(chan func(), cfg.QueueSize),
	}
}

// Supervisor returns the worker pool supervisor (nil if not running).
func (m *CommandManager) Supervisor() *rtsup.Supervisor {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if !m.running {
		return nil
	}
	return m.sup
}

func (m *CommandManager) setSupervisor(sup *rtsup.Supervisor, running bool) {
	m.runMu.Lock()
	m.sup = sup
	m.running = running
	m.runMu.Unlock()
}

// SetAccess replaces the admin lists. Safe during hot reload.
func (m *CommandManager) SetAccess(adminChats, ownerUsers []int64) {
	a := slices.Clone(adminChats)
	o := slices.Clone(ownerUsers)
	m.mu.Lock()
	m.adminChats, m.ownerUsers = a, o
	m.mu.Unlock()
}

// IsAdmin reports whether the chat is an admin chat or the user an owner.
func (m *CommandManager) IsAdmin(chatID, userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Contains(m.adminChats, chatID) || slices.Contains(m.ownerUsers, userID)
}

// SetCommands installs the command table; /help is always added.
func (m *CommandManager) SetCommands(cmds []Command) {
	all := make([]Command, 0, len(cmds)+1)
	for _, c := range cmds {
		c.Name = strings.ToLower(strings.TrimSpace(c.Name))
		if c.Name == "" || c.Handle == nil {
			continue
		}
		all = append(all, c)
	}
	all = append(all, Command{
		Name:        "help",
		Aliases:     []string{"h"},
		Description: "show available commands",
		Usage:       "/help [command]",
		Handle: func(ctx context.Context, req *Request) error {
			return req.ReplyHTML(ctx, m.helpText(req.Args, req.Admin))
		},
	})

	byName := make(map[string]*Command, len(all)*2)
	for i := range all {
		c := &all[i]
		byName[c.Name] = c
		for _, a := range c.Aliases {
			a = strings.ToLower(strings.TrimSpace(a))
			if a == "" || strings.Contains(a, " ") {
				continue
			}
			if _, exists := byName[a]; !exists {
				byName[a] = c
			}
		}
	}

	m.mu.Lock()
	m.cmds = byName
	m.list = all
	m.mu.Unlock()
}

// Commands returns the installed table in registration order.
func (m *CommandManager) Commands() []Command {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.list)
}

// UpdateMenu publishes the command list to the adapter when it supports it.
func (m *CommandManager) UpdateMenu(ctx context.Context) error {
	up, ok := m.adapter.(kit.CommandMenuUpdater)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return up.UpdateMenuCommands(ctx, menuCommands(m.Commands()))
}

func (m *CommandManager) lookup(name string) (Command, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cmds[name]
	if !ok {
		return Command{}, false
	}
	return *c, true
}

// tryEnqueue never blocks and tolerates a closed queue.
func (m *CommandManager) tryEnqueue(fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	select {
	case m.jobs <- fn:
		return true
	default:
		return false
	}
}

// DispatchLoop consumes updates until ctx is done or updates is closed.
// It can run once per manager.
func (m *CommandManager) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	workers := m.cfg.Workers
	sup := rtsup.New(ctx,
		rtsup.WithLogger(m.log.With(logx.String("comp", "telegram.router"))),
		rtsup.WithCancelOnError(false),
	)
	m.setSupervisor(sup, true)
	m.log.Info("command dispatcher started", logx.Int("workers", workers), logx.Int("job_queue_cap", cap(m.jobs)))

	var closeOnce sync.Once
	closeJobs := func() {
		closeOnce.Do(func() {
			m.setSupervisor(sup, false)
			close(m.jobs)
		})
	}

	for i := range workers {
		idx := i
		sup.GoRestart("command.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job, ok := <-m.jobs:
					if !ok {
						return nil
					}
					m.runJob(idx, job)
				}
			}
		},
			rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			rtsup.WithPublishFirstError(true),
		)
	}

	defer func() {
		closeJobs()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		sup.Cancel()
		m.setSupervisor(nil, false)
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			m.routeMessage(ctx, up)
		}
	}
}

func (m *CommandManager) runJob(worker int, job func()) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("panic in command job", logx.Int("worker", worker), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	job()
}

func (m *CommandManager) routeMessage(root context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	parts := tokenizeCommandLine(text)
	if len(parts) == 0 {
		return
	}
	word, mention := commandWord(parts[0])
	if mention != "" && m.cfg.BotUsername != "" && !strings.EqualFold(mention, m.cfg.BotUsername) {
		return
	}
	chat := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}

	cmd, ok := m.lookup(word)
	if !ok {
		// in groups other bots' commands are common; stay quiet there
		if !msg.IsGroup || mention != "" {
			_, _ = m.adapter.SendText(root, chat, unknownReply, nil)
		}
		return
	}

	admin := m.IsAdmin(msg.ChatID, msg.FromID)
	if cmd.Access == AccessAdmin && !admin {
		m.log.Info("command forbidden", logx.String("cmd", cmd.Name), logx.Int64("chat_id", msg.ChatID), logx.Int64("from_id", msg.FromID))
		_, _ = m.adapter.SendText(root, chat, forbiddenReply, nil)
		return
	}

	rid := newReqID()
	req := &Request{
		Message:      msg,
		Chat:         chat,
		FromID:       msg.FromID,
		FromUsername: msg.FromUsername,
		Command:      cmd.Name,
		Args:         parts[1:],
		ReqID:        rid,
		Admin:        admin,
		Logger: m.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", cmd.Name),
		),
		sender: m.adapter,
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = m.cfg.DefaultTimeout
	}
	final := Chain(
		cmd.Handle,
		MWAudit(m.audit, m.log),
		MWErrorReply(),
		MWPanicRecover(m.log),
		MWRequestLog(m.log),
		MWTimeout(timeout),
	)
	if !m.tryEnqueue(func() { _ = final(root, req) }) {
		_, _ = m.adapter.SendText(root, chat, busyReply, nil)
	}
}
