// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package transport performs the client's HTTP GET requests with a connect
// timeout, a per-request read timeout and optional request signing.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"rivaas.dev/remoteconfig/internal/protocol"
)

const (
	defaultConnectTimeout = time.Second
	defaultReadTimeout    = 5 * time.Second
	maxBodySize           = 32 << 20
)

// StatusError reports a response status other than 200 or 304.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// IsStatus reports whether err is a [*StatusError] with the given code.
func IsStatus(err error, code int) bool {
	var serr *StatusError
	return errors.As(err, &serr) && serr.Code == code
}

// Option configures a [Client].
type Option func(*Client)

// WithConnectTimeout bounds connection establishment.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) { c.connectTimeout = d }
}

// WithReadTimeout sets the default bound of a whole request.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Client) { c.readTimeout = d }
}

// WithSigning signs every request for appID with secret. An empty secret
// disables signing.
func WithSigning(appID, secret string) Option {
	return func(c *Client) {
		c.appID = appID
		c.secret = secret
	}
}

// WithHTTPClient replaces the underlying client. The connect timeout option
// is ignored in that case.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Client issues GET requests and decodes JSON responses.
type Client struct {
	http           *http.Client
	connectTimeout time.Duration
	readTimeout    time.Duration
	appID          string
	secret         string
	now            func() time.Time
}

// New creates a Client on a pooled transport.
func New(opts ...Option) *Client {
	c := &Client{
		connectTimeout: defaultConnectTimeout,
		readTimeout:    defaultReadTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		tr := cleanhttp.DefaultPooledTransport()
		tr.DialContext = (&net.Dialer{
			Timeout:   c.connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext
		c.http = &http.Client{Transport: tr}
	}
	return c
}

// GetJSON fetches url and decodes a 200 body into out. A 304 returns
// [http.StatusNotModified] with a nil error and leaves out untouched. Any
// other status yields a [*StatusError]. timeout overrides the client's read
// timeout when positive.
func (c *Client) GetJSON(ctx context.Context, url string, timeout time.Duration, out any) (int, error) {
	if timeout <= 0 {
		timeout = c.readTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	headers, err := protocol.AuthHeaders(url, c.appID, c.secret, c.now())
	if err != nil {
		return 0, err
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
		if out == nil {
			return resp.StatusCode, nil
		}
		if err = json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response from %s: %w", url, err)
		}
		return resp.StatusCode, nil
	case http.StatusNotModified:
		return resp.StatusCode, nil
	default:
		return resp.StatusCode, &StatusError{URL: url, Code: resp.StatusCode}
	}
}

// CloseIdleConnections releases pooled connections.
func (c *Client) CloseIdleConnections() {
	c.http.CloseIdleConnections()
}
