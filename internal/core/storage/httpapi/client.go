// Package httpapi reads the world catalog from the backend REST API and
// performs server joins through it.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/zeusync/mapsync/internal/core/models"
	"github.com/zeusync/mapsync/internal/core/observability/log"
	"github.com/zeusync/mapsync/internal/core/storage"
)

const (
	PathRegions    = "/api/regions"
	PathAreas      = "/api/areas"
	PathObjectives = "/api/objectives"
	PathFactions   = "/api/factions"
	PathServers    = "/api/servers"
	PathPawns      = "/api/pawns"
	PathNavigate   = "/api/users/navigate"
)

var (
	_ storage.Lister = (*Client)(nil)
	_ storage.Joiner = (*Client)(nil)
)

type Client struct {
	base     *url.URL
	http     *http.Client
	pageSize int
	headers  http.Header
	logger   log.Log
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithPageSize(size int) Option {
	return func(cl *Client) {
		if size > 0 {
			cl.pageSize = size
		}
	}
}

// WithHeader adds a header to every request, e.g. a session cookie.
func WithHeader(key, value string) Option {
	return func(cl *Client) { cl.headers.Add(key, value) }
}

func WithLogger(logger log.Log) Option {
	return func(cl *Client) { cl.logger = logger }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	c := &Client{
		base:     base,
		http:     &http.Client{Timeout: 30 * time.Second},
		pageSize: storage.Unpaged,
		headers:  make(http.Header),
		logger:   log.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(log.String("component", "httpapi"))
	return c, nil
}

func (c *Client) Regions(ctx context.Context) ([]models.Region, error) {
	return list[models.Region](ctx, c, PathRegions)
}

func (c *Client) Areas(ctx context.Context) ([]models.Area, error) {
	return list[models.Area](ctx, c, PathAreas)
}

func (c *Client) Objectives(ctx context.Context) ([]models.Objective, error) {
	return list[models.Objective](ctx, c, PathObjectives)
}

func (c *Client) Factions(ctx context.Context) ([]models.Faction, error) {
	return list[models.Faction](ctx, c, PathFactions)
}

func (c *Client) Servers(ctx context.Context) ([]models.Server, error) {
	return list[models.Server](ctx, c, PathServers)
}

func (c *Client) Pawns(ctx context.Context) ([]models.Pawn, error) {
	return list[models.Pawn](ctx, c, PathPawns)
}

// list fetches every row of a paged endpoint in one request.
func list[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	u := c.endpoint(path)
	q := u.Query()
	q.Set("page", "0")
	q.Set("size", strconv.Itoa(c.pageSize))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	var page storage.Page[T]
	if err = c.do(req, &page); err != nil {
		return nil, errors.Wrapf(err, "GET %s", path)
	}
	if !page.Last && page.TotalElements > int64(len(page.Content)) {
		return nil, errors.Wrapf(storage.ErrTruncated, "GET %s: %d of %d rows", path, len(page.Content), page.TotalElements)
	}
	c.logger.Debug("Listed", log.String("path", path), log.Int("rows", len(page.Content)))
	return page.Content, nil
}

func (c *Client) Join(ctx context.Context, join storage.JoinRequest) (models.Destination, error) {
	body, err := json.Marshal(join)
	if err != nil {
		return models.Destination{}, errors.Wrap(err, "encode join request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(PathNavigate).String(), bytes.NewReader(body))
	if err != nil {
		return models.Destination{}, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	var dest models.Destination
	if err = c.do(req, &dest); err != nil {
		return models.Destination{}, errors.Wrapf(err, "join server %d", join.ServerID)
	}
	return dest, nil
}

func (c *Client) endpoint(path string) *url.URL {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	return &u
}

// StatusError is returned for non 2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return storage.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
