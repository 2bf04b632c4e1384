package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/carlmjohnson/versioninfo"

	"github.com/warden-mod/warden/util"
)

// HTTP client for a remote content scoring service. The wire contract is
// minimal: POST the raw image bytes to /score with the mime type as
// Content-Type, get back {"score": 0.87}.
type Client struct {
	Client   http.Client
	Host     string
	Password string
}

var _ Scorer = (*Client)(nil)

func NewClient(host, password string) *Client {
	return &Client{
		Client:   *util.RobustHTTPClient(),
		Host:     host,
		Password: password,
	}
}

type scoreResp struct {
	Score float64 `json:"score"`
}

func (c *Client) ScoreImage(ctx context.Context, data []byte, mimeType string) (float64, error) {

	slog.Debug("sending image to content scorer", "mimetype", mimeType, "size", len(data))

	req, err := http.NewRequestWithContext(ctx, "POST", c.Host+"/score", bytes.NewBuffer(data))
	if err != nil {
		return 0, err
	}
	if c.Password != "" {
		req.SetBasicAuth("admin", c.Password)
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "warden/"+versioninfo.Short())

	start := time.Now()
	defer func() {
		scorerAPIDuration.Observe(time.Since(start).Seconds())
	}()

	res, err := c.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("content scorer request failed: %w", err)
	}
	defer res.Body.Close()

	scorerAPICount.WithLabelValues(fmt.Sprint(res.StatusCode)).Inc()
	if res.StatusCode != 200 {
		return 0, fmt.Errorf("content scorer request failed statusCode=%d", res.StatusCode)
	}

	respBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read scorer resp body: %w", err)
	}

	var respObj scoreResp
	if err := json.Unmarshal(respBytes, &respObj); err != nil {
		return 0, fmt.Errorf("failed to parse scorer resp JSON: %w", err)
	}
	if respObj.Score < 0 || respObj.Score > 1 {
		return 0, fmt.Errorf("content scorer returned out-of-range score: %f", respObj.Score)
	}
	return respObj.Score, nil
}
