package narrative

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPNarratorSuccess(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "generated narrative"})
	}))
	defer server.Close()

	n := NewHTTPNarrator(server.URL, time.Second)
	text, err := n.Narrate(context.Background(), sampleEntry())
	if err != nil {
		t.Fatalf("narrate: %v", err)
	}
	if text != "generated narrative" {
		t.Errorf("got %q", text)
	}
	if received["severity"] != "CRITICAL" {
		t.Errorf("payload missing severity: %v", received)
	}
}

func TestHTTPNarratorNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	n := NewHTTPNarrator(server.URL, time.Second)
	if _, err := n.Narrate(context.Background(), sampleEntry()); err == nil {
		t.Fatal("expected error on 503")
	}
}

func TestHTTPNarratorEmptyText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": ""})
	}))
	defer server.Close()

	n := NewHTTPNarrator(server.URL, time.Second)
	if _, err := n.Narrate(context.Background(), sampleEntry()); err == nil {
		t.Fatal("expected error on empty text")
	}
}

func TestHTTPNarratorNoEndpoint(t *testing.T) {
	n := NewHTTPNarrator("", time.Second)
	if _, err := n.Narrate(context.Background(), sampleEntry()); err == nil {
		t.Fatal("expected error without endpoint")
	}
}
