// Package api is the client side of the devnode: ledger and relayer bindings
// over HTTP, and the websocket inbox feed.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"phantom_link/internal/fault"
	"phantom_link/internal/model"
)

const service = "devnode"

type Client struct {
	base *url.URL
	http *http.Client
}

func NewClient(nodeURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(nodeURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("node url %q: %w", nodeURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("node url %q: scheme must be http or https", nodeURL)
	}
	return &Client{
		base: u,
		http: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path = u.Path + path
	return u.String()
}

// do sends in as JSON (when non-nil) and decodes the reply into out. Error
// bodies come back as taxonomy errors.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fault.Unavailable(service, err)
	}
	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &fault.DecodeError{What: path + " response", Err: err}
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body model.ErrorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		return fmt.Errorf("%s: unexpected status %s", service, resp.Status)
	}
	if body.Kind == "" {
		return fmt.Errorf("%s: %s", service, body.Error)
	}
	return fault.FromKind(body.Kind, body.Error)
}
