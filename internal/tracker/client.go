package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	logx "slabot/pkg/logx"
)

// maxIssues caps one search across all pages.
const maxIssues = 1000

type Config struct {
	BaseURL   string
	BrowseURL string
	Username  string
	Password  string
	Token     string // personal access token; wins over basic auth
	SLAField  string
	PageSize  int
	Timeout   time.Duration
}

// Client searches a Jira server. Failures are returned as *FetchError or
// *ParseError and never retried here; the next reminder tick is the retry.
type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BrowseURL == "" {
		cfg.BrowseURL = cfg.BaseURL
	}
	cfg.BrowseURL = strings.TrimRight(cfg.BrowseURL, "/")
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, log: log}
}

// BrowseURL links to the issue in the tracker UI.
func (c *Client) BrowseURL(key string) string {
	return c.cfg.BrowseURL + "/browse/" + url.PathEscape(key)
}

// FetchMatchingIssues runs a JQL search and returns issues in tracker order.
func (c *Client) FetchMatchingIssues(ctx context.Context, jql string) ([]Issue, error) {
	if strings.TrimSpace(jql) == "" {
		return nil, ErrEmptyQuery
	}
	started := time.Now()
	var out []Issue
	for startAt := 0; ; {
		page, err := c.search(ctx, jql, startAt)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Issues {
			iss, err := decodeIssue(raw, c.cfg.SLAField)
			if err != nil {
				return nil, err
			}
			out = append(out, iss)
		}
		startAt += len(page.Issues)
		if len(page.Issues) == 0 || startAt >= page.Total {
			break
		}
		if startAt >= maxIssues {
			c.log.Warn("search truncated", logx.Int("total", page.Total), logx.Int("kept", len(out)))
			break
		}
	}
	c.log.Debug("search done", logx.Int("issues", len(out)), logx.Duration("took", time.Since(started)))
	return out, nil
}

type searchPage struct {
	Total  int               `json:"total"`
	Issues []json.RawMessage `json:"issues"`
}

func (c *Client) search(ctx context.Context, jql string, startAt int) (*searchPage, error) {
	fields := []string{"summary", "status", "assignee"}
	if c.cfg.SLAField != "" {
		fields = append(fields, c.cfg.SLAField)
	}
	q := url.Values{}
	q.Set("jql", jql)
	q.Set("maxResults", strconv.Itoa(c.cfg.PageSize))
	if startAt > 0 {
		q.Set("startAt", strconv.Itoa(startAt))
	}
	q.Set("fields", strings.Join(fields, ","))
	u := c.cfg.BaseURL + "/rest/api/2/search?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchError{Op: "search", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	} else if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Op: "search", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &FetchError{
			Op:     "search",
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(b)),
			Err:    errors.New(http.StatusText(resp.StatusCode)),
		}
	}

	var page searchPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, &ParseError{Err: err}
	}
	if page.Issues == nil {
		return nil, &ParseError{Err: errors.New(`missing "issues"`)}
	}
	return &page, nil
}

type rawIssue struct {
	Key    string                     `json:"key"`
	Fields map[string]json.RawMessage `json:"fields"`
}

type rawSLA struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	CompletedCycles []rawCycle `json:"completedCycles"`
	OngoingCycle    *rawCycle  `json:"ongoingCycle"`
}

type rawCycle struct {
	StartTime     *rawTime    `json:"startTime"`
	BreachTime    *rawTime    `json:"breachTime"`
	Breached      bool        `json:"breached"`
	Paused        bool        `json:"paused"`
	GoalDuration  rawDuration `json:"goalDuration"`
	ElapsedTime   rawDuration `json:"elapsedTime"`
	RemainingTime rawDuration `json:"remainingTime"`
}

type rawTime struct {
	EpochMillis int64 `json:"epochMillis"`
}

type rawDuration struct {
	Millis   int64  `json:"millis"`
	Friendly string `json:"friendly"`
}

func decodeIssue(raw json.RawMessage, slaField string) (Issue, error) {
	var ri rawIssue
	if err := json.Unmarshal(raw, &ri); err != nil {
		return Issue{}, &ParseError{Err: err}
	}
	if ri.Key == "" {
		return Issue{}, &ParseError{Err: errors.New("issue without key")}
	}
	iss := Issue{Key: ri.Key}

	field := func(name string, dst any) error {
		v, ok := ri.Fields[name]
		if !ok || string(v) == "null" {
			return nil
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return &ParseError{Key: ri.Key, Err: fmt.Errorf("field %s: %w", name, err)}
		}
		return nil
	}

	if err := field("summary", &iss.Summary); err != nil {
		return Issue{}, err
	}
	var status struct {
		Name string `json:"name"`
	}
	if err := field("status", &status); err != nil {
		return Issue{}, err
	}
	iss.Status = status.Name

	var assignee struct {
		DisplayName string `json:"displayName"`
	}
	if err := field("assignee", &assignee); err != nil {
		return Issue{}, err
	}
	iss.Assignee = assignee.DisplayName

	if slaField != "" {
		var rs *rawSLA
		if err := field(slaField, &rs); err != nil {
			return Issue{}, err
		}
		if rs != nil {
			iss.SLA = convertSLA(rs)
		}
	}
	return iss, nil
}

func convertSLA(rs *rawSLA) *SLA {
	s := &SLA{ID: rs.ID, Name: rs.Name}
	if rs.OngoingCycle != nil {
		c := convertCycle(*rs.OngoingCycle)
		s.Ongoing = &c
	}
	for _, rc := range rs.CompletedCycles {
		s.Completed = append(s.Completed, convertCycle(rc))
	}
	return s
}

func convertCycle(rc rawCycle) SLACycle {
	c := SLACycle{
		Breached:  rc.Breached,
		Paused:    rc.Paused,
		Goal:      Duration(rc.GoalDuration),
		Elapsed:   Duration(rc.ElapsedTime),
		Remaining: Duration(rc.RemainingTime),
	}
	if rc.StartTime != nil && rc.StartTime.EpochMillis > 0 {
		c.StartedAt = time.UnixMilli(rc.StartTime.EpochMillis)
	}
	if rc.BreachTime != nil && rc.BreachTime.EpochMillis > 0 {
		c.BreachAt = time.UnixMilli(rc.BreachTime.EpochMillis)
	}
	return c
}
