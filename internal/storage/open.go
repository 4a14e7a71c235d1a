package storage

import (
	"context"
	"fmt"
	"strings"

	logx "slabot/pkg/logx"
)

// Open initializes the configured store. A disabled store is returned as
// Nop, never nil.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver {
	case "", "none":
		return Nop{}, nil
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
}

// Nop is the disabled store.
type Nop struct{}

func (Nop) AppendAudit(context.Context, AuditEntry) error { return nil }

func (Nop) RecentAudit(context.Context, int) ([]AuditEntry, error) { return nil, ErrDisabled }

func (Nop) Close() error { return nil }
