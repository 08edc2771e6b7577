package cms

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lysyi3m/gamesite-bff/internal/apperr"
)

func newGatewayServer(t *testing.T, status int, reply string, inspect func(r *http.Request, req request)) *Gateway {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("request is not JSON: %v", err)
		}
		if inspect != nil {
			inspect(r, req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return NewGateway(srv.Client(), Options{Endpoint: srv.URL, AuthToken: "secret", UserAgent: "test-agent"})
}

func TestExecuteDecodesData(t *testing.T) {
	var seen request
	var auth string
	gw := newGatewayServer(t, http.StatusOK, `{"data":{"viewer":{"name":"editor"}}}`, func(r *http.Request, req request) {
		seen = req
		auth = r.Header.Get("Authorization")
	})

	var out struct {
		Viewer struct {
			Name string `json:"name"`
		} `json:"viewer"`
	}
	err := gw.Execute(context.Background(), "query { viewer { name } }", map[string]any{"a": "b"}, &out)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if out.Viewer.Name != "editor" {
		t.Errorf("Expected viewer name 'editor', got %q", out.Viewer.Name)
	}
	if seen.Query != "query { viewer { name } }" {
		t.Errorf("Expected document to be forwarded verbatim, got %q", seen.Query)
	}
	if diff := cmp.Diff(map[string]any{"a": "b"}, seen.Variables); diff != "" {
		t.Errorf("variables mismatch (-want +got):\n%s", diff)
	}
	if auth != "Bearer secret" {
		t.Errorf("Expected bearer auth header, got %q", auth)
	}
}

func TestExecuteApplicationError(t *testing.T) {
	reply := `{"data":null,"errors":[{"message":"Sorry, you are not allowed to create posts","path":["createPost"],"extensions":{"category":"user"}}]}`

	for _, status := range []int{http.StatusOK, http.StatusBadRequest, http.StatusInternalServerError} {
		gw := newGatewayServer(t, status, reply, nil)

		err := gw.Execute(context.Background(), "mutation { createPost }", nil, nil)
		if !apperr.Is(err, apperr.KindApplication) {
			t.Fatalf("status %d: expected application error, got %v", status, err)
		}

		details, ok := apperr.DetailsOf(err).(GraphQLErrors)
		if !ok {
			t.Fatalf("Expected GraphQLErrors details, got %T", apperr.DetailsOf(err))
		}
		if diff := cmp.Diff([]string{"Sorry, you are not allowed to create posts"}, details.Messages()); diff != "" {
			t.Errorf("messages mismatch (-want +got):\n%s", diff)
		}
		if details[0].Extensions["category"] != "user" {
			t.Errorf("Expected extensions to survive, got %v", details[0].Extensions)
		}
	}
}

func TestExecuteTransportErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		reply  string
	}{
		{"bad gateway", http.StatusBadGateway, "<html>bad gateway</html>"},
		{"not json", http.StatusOK, "<html>maintenance</html>"},
		{"no data", http.StatusOK, `{"data":null}`},
		{"wrong shape", http.StatusOK, `{"data":{"viewer":"not an object"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newGatewayServer(t, tt.status, tt.reply, nil)

			var out struct {
				Viewer struct{} `json:"viewer"`
			}
			err := gw.Execute(context.Background(), "query { viewer }", nil, &out)
			if !apperr.Is(err, apperr.KindUpstream) {
				t.Errorf("Expected upstream error, got %v", err)
			}
		})
	}
}

type failingTransport struct{}

func (failingTransport) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection reset by peer")
}

func TestExecuteUnreachable(t *testing.T) {
	gw := NewGateway(failingTransport{}, Options{Endpoint: "http://cms.invalid/graphql"})

	err := gw.Execute(context.Background(), "query { viewer }", nil, nil)
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("Expected upstream error, got %v", err)
	}
}
