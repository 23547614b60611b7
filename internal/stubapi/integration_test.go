package stubapi

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vidgen/internal/api"
	"vidgen/internal/download"
	"vidgen/internal/generation"
	"vidgen/internal/job"
)

// Full flow against the stub backend: submit, survive the visibility window,
// poll to completion, download the file.
func TestGenerationFlowAgainstStub(t *testing.T) {
	stub := New(Options{
		VisibilityDelay: 40 * time.Millisecond,
		StepInterval:    10 * time.Millisecond,
	})
	srv := httptest.NewServer(stub.Router())
	defer srv.Close()

	client, err := api.NewClient(api.Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctrl, err := generation.New(generation.Options{
		Backend:            client,
		PollInterval:       10 * time.Millisecond,
		SlowPollInterval:   20 * time.Millisecond,
		NotFoundRetryDelay: 10 * time.Millisecond,
		NotFoundThreshold:  5,
	})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	defer ctrl.Cancel()

	params := job.Parameters{Prompt: "cat on a skateboard", Seconds: 5, Resolution: "854x480"}
	if err := ctrl.Submit(context.Background(), params); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	final, err := ctrl.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}

	if ctrl.State() != generation.StateCompleted {
		t.Fatalf("state = %q, want completed (job: %+v)", ctrl.State(), final)
	}
	if final.Result == nil || final.Result.VideoURL == "" {
		t.Fatalf("completed job carries no video url: %+v", final)
	}
	if final.ProviderStatus != "Succeeded" {
		t.Fatalf("provider status = %q, want Succeeded", final.ProviderStatus)
	}

	dest := filepath.Join(t.TempDir(), download.DeriveFilename(final.Params.Prompt))
	if err := download.Save(ctx, srv.Client(), final.Result.VideoURL, dest); err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if filepath.Base(dest) != "cat_on.mp4" {
		t.Fatalf("derived filename = %q, want cat_on.mp4", filepath.Base(dest))
	}
	info, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("stat downloaded file: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("downloaded file is empty")
	}
}

// A prompt containing "fail" drives the stub's failure path and must surface
// as a failed job, not a client error.
func TestGenerationFailureAgainstStub(t *testing.T) {
	stub := New(Options{StepInterval: 5 * time.Millisecond})
	srv := httptest.NewServer(stub.Router())
	defer srv.Close()

	client, err := api.NewClient(api.Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctrl, err := generation.New(generation.Options{
		Backend:            client,
		PollInterval:       5 * time.Millisecond,
		SlowPollInterval:   10 * time.Millisecond,
		NotFoundRetryDelay: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	defer ctrl.Cancel()

	params := job.Parameters{Prompt: "please fail this one", Seconds: 2, Resolution: "854x480"}
	if err := ctrl.Submit(context.Background(), params); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	final, err := ctrl.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}

	if final.Status != job.StatusFailed {
		t.Fatalf("status = %q, want failed", final.Status)
	}
	if final.Error != "simulated generation failure" {
		t.Fatalf("error = %q, want the server-reported reason", final.Error)
	}
	if ctrl.State() != generation.StateFailed {
		t.Fatalf("state = %q, want failed", ctrl.State())
	}
}
