// Package testutil provides fixtures shared by package tests: a fake REDCap
// API server, canned session rows and a deterministic clock.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// FakeREDCap is an httptest server that answers REDCap record exports.
//
// Requests with a token other than Token get a 403 and REDCap's error
// document. Every accepted form is kept in Requests for later assertions.
type FakeREDCap struct {
	Server *httptest.Server
	Token  string

	mu       sync.Mutex
	rows     []map[string]any
	status   int
	body     string
	requests []url.Values
}

// NewFakeREDCap starts a fake API that accepts token and returns rows.
// The server is closed when the test ends.
func NewFakeREDCap(t *testing.T, token string, rows []map[string]any) *FakeREDCap {
	t.Helper()
	f := &FakeREDCap{Token: token, rows: rows}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

// NewFakeREDCapTLS is NewFakeREDCap over HTTPS with a self-signed certificate.
func NewFakeREDCapTLS(t *testing.T, token string, rows []map[string]any) *FakeREDCap {
	t.Helper()
	f := &FakeREDCap{Token: token, rows: rows}
	f.Server = httptest.NewTLSServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the API endpoint.
func (f *FakeREDCap) URL() string {
	return f.Server.URL + "/redcap/api/"
}

// FailWith makes every following request answer status with body verbatim.
func (f *FakeREDCap) FailWith(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
	f.body = body
}

// Requests returns the forms received so far.
func (f *FakeREDCap) Requests() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]url.Values, len(f.requests))
	copy(out, f.requests)
	return out
}

func (f *FakeREDCap) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.requests = append(f.requests, r.PostForm)
	status, body, rows := f.status, f.body, f.rows
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
		return
	}
	if r.PostForm.Get("token") != f.Token {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"You do not have permissions to use the API"}`))
		return
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	_ = json.NewEncoder(w).Encode(rows)
}
