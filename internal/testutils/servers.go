// Package testutils provides shared test infrastructure: httptest stand-ins
// for the identity provider and the file vault, and (behind the integration
// build tag) testcontainers-backed databases and object storage.
package testutils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
)

// TokenServer is a fake OAuth2 token endpoint.
type TokenServer struct {
	*httptest.Server
	requests atomic.Int32
}

// TokenURL returns the Keycloak-style token endpoint of the server.
func (s *TokenServer) TokenURL() string {
	return s.URL + "/realms/test/protocol/openid-connect/token"
}

// Requests returns the number of token requests served.
func (s *TokenServer) Requests() int {
	return int(s.requests.Load())
}

// StartTokenServer starts a token endpoint that issues token to any caller.
// An empty token makes it reject every request with invalid_grant.
func StartTokenServer(t *testing.T, token string) *TokenServer {
	t.Helper()

	s := &TokenServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if r.Method != http.MethodPost || token == "" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{
				"error":             "invalid_grant",
				"error_description": "Invalid user credentials",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": token,
			"token_type":   "Bearer",
			"expires_in":   300,
		})
	}))
	t.Cleanup(s.Close)
	return s
}

// FileServer is a fake file vault serving one CSV file behind a bearer token.
type FileServer struct {
	*httptest.Server
	Path     string
	requests atomic.Int32
}

// FileURL returns the absolute URL of the served file.
func (s *FileServer) FileURL() string {
	return s.URL + s.Path
}

// Requests returns the number of requests received, authorized or not.
func (s *FileServer) Requests() int {
	return int(s.requests.Load())
}

// StartFileServer serves body at path to requests carrying token.
func StartFileServer(t *testing.T, path, token, body string) *FileServer {
	t.Helper()
	return startFileServer(t, path, token, func(w http.ResponseWriter) {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Write([]byte(body))
	})
}

// StartTruncatingFileServer serves prefix at path but declares a longer
// Content-Length, so the client sees the connection drop mid-body.
func StartTruncatingFileServer(t *testing.T, path, token, prefix string) *FileServer {
	t.Helper()
	return startFileServer(t, path, token, func(w http.ResponseWriter) {
		w.Header().Set("Content-Length", strconv.Itoa(len(prefix)+1024))
		w.Write([]byte(prefix))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	})
}

func startFileServer(t *testing.T, path, token string, serve func(w http.ResponseWriter)) *FileServer {
	s := &FileServer{Path: path}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		serve(w)
	}))
	t.Cleanup(s.Close)
	return s
}
