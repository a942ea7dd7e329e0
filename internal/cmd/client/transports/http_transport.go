package transports

import (
	"bufio"
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

	"github.com/gemdrive/gemdrive/internal/eventlog"
)

// maxLine bounds one NDJSON frame; previews are capped server-side well
// below this.
const maxLine = 4 << 20

// HTTPTransport talks to the HTTP API.
type HTTPTransport struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

// NewHTTPTransport constructs an HTTPTransport with a default client.
func NewHTTPTransport(baseURL, token string) *HTTPTransport {
	return &HTTPTransport{BaseURL: strings.TrimRight(baseURL, "/"), Token: token, Client: http.DefaultClient}
}

func (t *HTTPTransport) get(ctx context.Context, path string, q url.Values) (*http.Response, error) {
	u := t.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if t.Token != "" {
		req.Header.Set("Authorization", "Bearer "+t.Token)
	}
	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return resp, nil
	case http.StatusUnauthorized:
		resp.Body.Close()
		return nil, ErrUnauthorized
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrNotFound
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s: %s", path, resp.Status, strings.TrimSpace(string(b)))
	}
}

// Tail reads the NDJSON feed.
func (t *HTTPTransport) Tail(ctx context.Context, req TailRequest, onEvent func(eventlog.Event) error) error {
	q := url.Values{}
	if req.Since != nil {
		q.Set("since", req.Since.UTC().Format(time.RFC3339Nano))
	}
	if req.Filter != "" {
		q.Set("filter", req.Filter)
	}
	resp, err := t.get(ctx, "/gemdrive/events/", q)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64<<10), maxLine)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		ev, err := decodeFrame(line)
		if err != nil {
			return err
		}
		if ev == nil {
			continue
		}
		if err := onEvent(*ev); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// decodeFrame returns the event on the line, nil for the init probe, or a
// TerminalError for an error frame.
func decodeFrame(line []byte) (*eventlog.Event, error) {
	var probe struct {
		Debug *string `json:"debug"`
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if probe.Error != nil {
		return nil, &TerminalError{Code: *probe.Error}
	}
	if probe.Debug != nil {
		return nil, nil
	}
	var ev eventlog.Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &ev, nil
}

// Log returns a finite slice of logged events.
func (t *HTTPTransport) Log(ctx context.Context, req LogRequest) ([]eventlog.Event, error) {
	q := url.Values{}
	q.Set("since", req.Since.UTC().Format(time.RFC3339Nano))
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Filter != "" {
		q.Set("filter", req.Filter)
	}
	if req.Wait > 0 {
		q.Set("wait_ms", strconv.FormatInt(req.Wait.Milliseconds(), 10))
	}
	resp, err := t.get(ctx, "/gemdrive/events/log", q)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var evs []eventlog.Event
	if err := json.NewDecoder(resp.Body).Decode(&evs); err != nil {
		return nil, fmt.Errorf("decode log: %w", err)
	}
	return evs, nil
}

// Fetch opens the stored bytes at path. Callers close the reader.
func (t *HTTPTransport) Fetch(ctx context.Context, path string) (io.ReadCloser, error) {
	resp, err := t.get(ctx, (&url.URL{Path: path}).EscapedPath(), nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
