// Package cms talks to the headless CMS over GraphQL. The gateway forwards
// documents verbatim; post.go holds the only documents this service needs.
package cms

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lysyi3m/gamesite-bff/internal/apperr"
)

const maxResponseBytes = 5 << 20

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// GraphQLError is one entry of a GraphQL response's errors array.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// GraphQLErrors is the diagnostic payload attached to application errors.
type GraphQLErrors []GraphQLError

func (e GraphQLErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, ge := range e {
		msgs = append(msgs, ge.Message)
	}
	return strings.Join(msgs, "; ")
}

func (e GraphQLErrors) Messages() []string {
	msgs := make([]string, 0, len(e))
	for _, ge := range e {
		msgs = append(msgs, ge.Message)
	}
	return msgs
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors GraphQLErrors   `json:"errors"`
}

type Options struct {
	Endpoint  string
	AuthToken string
	UserAgent string
	Timeout   time.Duration
}

type Gateway struct {
	httpClient HTTPClient
	endpoint   string
	authToken  string
	userAgent  string
	timeout    time.Duration
}

func NewGateway(httpClient HTTPClient, opts Options) *Gateway {
	return &Gateway{
		httpClient: httpClient,
		endpoint:   opts.Endpoint,
		authToken:  opts.AuthToken,
		userAgent:  opts.UserAgent,
		timeout:    cmp.Or(opts.Timeout, 10*time.Second),
	}
}

// Execute sends document with variables and decodes the data member into out
// (out may be nil). Transport failures are KindUpstream; a non-empty errors
// array is KindApplication with GraphQLErrors as details. No retries.
func (g *Gateway) Execute(ctx context.Context, document string, variables map[string]any, out any) error {
	const op = "cms.execute"

	payload, err := json.Marshal(request{Query: document, Variables: variables})
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", op, err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return apperr.Upstream(op, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if g.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+g.authToken)
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return apperr.Upstream(op, fmt.Errorf("http post: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperr.Upstream(op, fmt.Errorf("read body: %w", err))
	}

	var envelope response
	decodeErr := json.Unmarshal(body, &envelope)

	// Some servers answer GraphQL errors with a 4xx/5xx status; keep the
	// structured errors when they are there.
	if decodeErr == nil && len(envelope.Errors) > 0 {
		return apperr.Application(op, envelope.Errors, envelope.Errors)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperr.Upstream(op, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	if decodeErr != nil {
		return apperr.Upstream(op, fmt.Errorf("decode response: %w", decodeErr))
	}

	if out == nil {
		return nil
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return apperr.Upstream(op, errors.New("response has no data"))
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return apperr.Upstream(op, fmt.Errorf("decode data: %w", err))
	}
	return nil
}
