package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"slabot/internal/config"
	"slabot/internal/reminder"
	"slabot/internal/report"
	"slabot/internal/tracker"
	logx "slabot/pkg/logx"
)

// CheckOnce fetches the configured query (or the given issue keys) and
// writes the rendered summary to w. It needs no Telegram connection.
func CheckOnce(ctx context.Context, cfgPath string, keys []string, w io.Writer) error {
	cfg, _, err := config.NewManager(cfgPath).Parse()
	if err != nil {
		return err
	}
	tc, err := mapTrackerConfig(cfg)
	if err != nil {
		return err
	}
	query := cfg.Jira.Query
	if len(keys) > 0 {
		if query, err = tracker.KeysQuery(keys...); err != nil {
			return err
		}
	}
	pred, err := mapPredicate(cfg)
	if err != nil {
		return err
	}
	client := tracker.New(tc, logx.NewJSON(os.Stderr, cfg.Logging.Level))
	cycle := reminder.NewCycle(client, report.NewRenderer(client.BrowseURL), nil, query, pred, logx.Nop())
	text, err := cycle.CheckNow(ctx, "")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, text)
	return err
}
