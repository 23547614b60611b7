package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"vidgen/internal/job"
)

func TestJobStatusSetsHeadersAndCacheBuster(t *testing.T) {
	var captured *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"processing","progress":30}`))
	}))
	defer srv.Close()

	client, err := NewClient(Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	update, err := client.JobStatus(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("JobStatus returned error: %v", err)
	}
	if update.Status == nil || *update.Status != job.StatusProcessing {
		t.Fatalf("status = %v, want processing", update.Status)
	}
	if update.Progress == nil || *update.Progress != 30 {
		t.Fatalf("progress = %v, want 30", update.Progress)
	}

	if captured.URL.Path != "/api/job/job-1" {
		t.Fatalf("path = %q, want /api/job/job-1", captured.URL.Path)
	}
	if captured.URL.Query().Get("t") == "" {
		t.Fatalf("cache-busting query parameter missing: %q", captured.URL.RawQuery)
	}
	if got := captured.Header.Get("Accept"); got != "application/json" {
		t.Fatalf("Accept = %q, want application/json", got)
	}
	if got := captured.Header.Get("Content-Type"); got != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", got)
	}
}

func TestCreateGenerationReturnsID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/generate" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"job-42","extra":"ignored"}`))
	}))
	defer srv.Close()

	client, err := NewClient(Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	id, err := client.CreateGeneration(context.Background(), GenerateRequest{
		Prompt: "a cat", Width: 854, Height: 480, Seconds: 5,
	})
	if err != nil {
		t.Fatalf("CreateGeneration returned error: %v", err)
	}
	if id != "job-42" {
		t.Fatalf("id = %q, want job-42", id)
	}
}

func TestCreateGenerationWithoutIDFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"accepted"}`))
	}))
	defer srv.Close()

	client, err := NewClient(Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := client.CreateGeneration(context.Background(), GenerateRequest{Prompt: "x"}); !errors.Is(err, ErrNoJobID) {
		t.Fatalf("err = %v, want ErrNoJobID", err)
	}
}

func TestStatusErrorCarriesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"backend exploded"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewClient(Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.JobStatus(context.Background(), "job-1")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d, want 500", se.Code)
	}
	if se.Message != "backend exploded" {
		t.Fatalf("message = %q, want backend exploded", se.Message)
	}
	if IsNotFound(err) {
		t.Fatalf("500 classified as not found")
	}
}

func TestIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"job not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := NewClient(Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.JobStatus(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want not-found classification", err)
	}
}

func TestTransportErrorIsNotStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	client, err := NewClient(Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.JobStatus(context.Background(), "job-1")
	if err == nil {
		t.Fatalf("expected transport error")
	}
	var se *StatusError
	if errors.As(err, &se) {
		t.Fatalf("transport failure classified as server response: %v", err)
	}
}
