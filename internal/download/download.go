package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// DeriveFilename builds a download filename from the original prompt: the
// first two whitespace-separated tokens, lowercased, joined with an
// underscore, reduced to [a-z0-9_], with an .mp4 suffix. A prompt that yields
// nothing falls back to "video.mp4".
func DeriveFilename(prompt string) string {
	tokens := strings.Fields(prompt)
	if len(tokens) > 2 {
		tokens = tokens[:2]
	}
	name := strings.ToLower(strings.Join(tokens, "_"))
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	name = b.String()
	if name == "" {
		name = "video"
	}
	return name + ".mp4"
}

// Save downloads videoURL and writes it to dest. The body is streamed into a
// temporary file which is renamed into place only after a full write, so a
// failed download never leaves a partial file behind.
func Save(ctx context.Context, client *http.Client, videoURL, dest string) error {
	parsed, err := url.Parse(strings.TrimSpace(videoURL))
	if err != nil || parsed.Scheme == "" {
		return fmt.Errorf("download: invalid video url: %s", videoURL)
	}
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return fmt.Errorf("download: build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download: fetch video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("download: unexpected status %s", resp.Status)
	}

	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("download: create file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("download: write file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("download: flush file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("download: close file: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("download: finalize file: %w", err)
	}
	return nil
}
