package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"golang.org/x/time/rate"

	"github.com/warden-mod/warden/util"
)

// HTTP client for a remote action gateway. Each action is a JSON POST to a
// fixed path; 404 and 409 responses are treated as success, since they
// indicate the action had already been applied (content gone, user already
// banned). Calls are rate-limited to avoid tripping platform limits.
type Client struct {
	Client     http.Client
	Host       string
	AdminToken string
	Limiter    *rate.Limiter
}

var _ Gateway = (*Client)(nil)

func NewClient(host, adminToken string, callsPerSec int) *Client {
	if callsPerSec <= 0 {
		callsPerSec = 20
	}
	return &Client{
		Client:     *util.RobustHTTPClient(),
		Host:       host,
		AdminToken: adminToken,
		Limiter:    rate.NewLimiter(rate.Limit(callsPerSec), 1),
	}
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	if err := c.Limiter.Wait(ctx); err != nil {
		return err
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.Host+path, bytes.NewBuffer(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "warden/"+versioninfo.Short())
	if c.AdminToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AdminToken)
	}

	start := time.Now()
	res, err := c.Client.Do(req)
	gatewayAPIDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer res.Body.Close()

	gatewayAPICount.WithLabelValues(path, fmt.Sprint(res.StatusCode)).Inc()
	switch {
	case res.StatusCode == 200 || res.StatusCode == 204:
		return nil
	case res.StatusCode == 404 || res.StatusCode == 409:
		// already applied; idempotent no-op
		return nil
	default:
		return fmt.Errorf("gateway request failed path=%s statusCode=%d", path, res.StatusCode)
	}
}

func (c *Client) DeleteContent(ctx context.Context, group, eventID string) error {
	return c.post(ctx, "/actions/deleteContent", map[string]string{
		"group_id": group,
		"event_id": eventID,
	})
}

func (c *Client) RestrictUser(ctx context.Context, group, user string, duration time.Duration) error {
	return c.post(ctx, "/actions/restrictUser", map[string]any{
		"group_id":     group,
		"user_id":      user,
		"duration_sec": int(duration.Seconds()),
	})
}

func (c *Client) RemoveUser(ctx context.Context, group, user string) error {
	return c.post(ctx, "/actions/removeUser", map[string]string{
		"group_id": group,
		"user_id":  user,
	})
}

func (c *Client) BanUser(ctx context.Context, group, user string) error {
	return c.post(ctx, "/actions/banUser", map[string]string{
		"group_id": group,
		"user_id":  user,
	})
}

func (c *Client) NotifyAdmin(ctx context.Context, group, text string) error {
	return c.post(ctx, "/actions/notifyAdmin", map[string]string{
		"group_id": group,
		"text":     text,
	})
}
