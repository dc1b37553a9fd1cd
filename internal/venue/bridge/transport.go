package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	"traderelay/internal/pkg/circuit"
	"traderelay/internal/venue"
)

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	u := c.cfg.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path string, payload map[string]any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// do sends the request through the breaker and maps bridge failures onto
// the venue error taxonomy. HTTP transport failures count against the
// breaker; bridge-level rejections like a requote do not, since the
// terminal is alive and answering.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	}
	var body []byte
	err := c.breaker.Do(func() error {
		resp, err := c.client.Do(req)
		if err != nil {
			return venue.NewTransient(venue.CodeUnavailable, "bridge: %v", err)
		}
		defer resp.Body.Close()
		body, err = io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return venue.NewTransient(venue.CodeUnavailable, "bridge: read: %v", err)
		}
		if resp.StatusCode >= 500 {
			return venue.NewTransient(venue.CodeUnavailable, "bridge: status %d", resp.StatusCode)
		}
		return nil
	})
	if err == circuit.ErrOpen {
		return nil, venue.NewTransient(venue.CodeUnavailable, "bridge circuit open")
	}
	if err != nil {
		return nil, err
	}
	if !gjson.GetBytes(body, "ok").Bool() {
		return nil, bridgeError(body)
	}
	return body, nil
}

// bridgeError converts the bridge's error envelope into a venue error.
func bridgeError(body []byte) error {
	code := gjson.GetBytes(body, "error.code").String()
	msg := gjson.GetBytes(body, "error.message").String()
	switch code {
	case "requote":
		return venue.NewTransient(venue.CodeRequote, "%s", msg)
	case "off_quotes":
		return venue.NewTransient(venue.CodeOffQuotes, "%s", msg)
	case "not_found":
		return venue.NewError(venue.CodeNotFound, "%s", msg)
	case "invalid_volume":
		return venue.NewError(venue.CodeInvalidVolume, "%s", msg)
	case "":
		return venue.NewError(venue.CodeRejected, "bridge rejected request")
	default:
		return venue.NewError(venue.CodeRejected, "%s: %s", code, msg)
	}
}
