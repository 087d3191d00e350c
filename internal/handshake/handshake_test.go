package handshake

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestPublishThenConsume(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoint.txt")
	if err := Publish(path, "ws://127.0.0.1:40123/stream"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	content, err := AwaitAndConsume(ctx, path)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if content != "ws://127.0.0.1:40123/stream" {
		t.Fatalf("unexpected content %q", content)
	}

	if _, err := os.Stat(path + MarkerSuffix); !os.IsNotExist(err) {
		t.Fatalf("expected marker removed, stat err %v", err)
	}
}

func TestConsumeIsExactlyOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoint.txt")
	if err := Publish(path, "addr"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := AwaitAndConsume(ctx, path); err != nil {
		t.Fatalf("first consume: %v", err)
	}

	// The content file remains but the marker is spent, so a second
	// await must block until its deadline.
	shortCtx, shortCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer shortCancel()
	if _, err := AwaitAndConsume(shortCtx, path); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestConsumerWaitsForMarker(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "endpoint.txt")

	// Content without a marker must not be consumed.
	if err := os.WriteFile(path, []byte("incomplete"), 0o644); err != nil {
		t.Fatalf("write content: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		content string
		err     error
	}
	done := make(chan result, 1)
	go func() {
		content, err := AwaitAndConsume(ctx, path)
		done <- result{content: content, err: err}
	}()

	select {
	case got := <-done:
		t.Fatalf("consume before marker: %q %v", got.content, got.err)
	case <-time.After(150 * time.Millisecond):
	}

	if err := os.WriteFile(path, []byte("complete"), 0o644); err != nil {
		t.Fatalf("rewrite content: %v", err)
	}
	marker, err := os.Create(path + MarkerSuffix)
	if err != nil {
		t.Fatalf("create marker: %v", err)
	}
	marker.Close()

	select {
	case got := <-done:
		if got.err != nil {
			t.Fatalf("await: %v", got.err)
		}
		if got.content != "complete" {
			t.Fatalf("unexpected content %q", got.content)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for consume")
	}
}

func TestAwaitHonorsContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoint.txt")
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	if _, err := AwaitAndConsume(ctx, path); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}

func TestPublishTwiceFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoint.txt")
	if err := Publish(path, "first"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := Publish(path, "second"); !errors.Is(err, ErrMarkerExists) {
		t.Fatalf("expected ErrMarkerExists, got %v", err)
	}
}

func TestConcurrentConsumersSeeCompleteContent(t *testing.T) {
	const trials = 8
	content := strings.Repeat("0123456789abcdef", 4096) + "|tail"

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	failures := make(chan error, trials)
	for trial := 0; trial < trials; trial++ {
		path := filepath.Join(t.TempDir(), fmt.Sprintf("endpoint_%d.txt", trial))
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := AwaitAndConsume(ctx, path)
			if err != nil {
				failures <- fmt.Errorf("await: %w", err)
				return
			}
			if got != content {
				failures <- fmt.Errorf("read %d bytes, want %d", len(got), len(content))
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			time.Sleep(10 * time.Millisecond)
			if err := Publish(path, content); err != nil {
				failures <- fmt.Errorf("publish: %w", err)
			}
		}()
	}
	wg.Wait()
	close(failures)
	for err := range failures {
		t.Fatalf("trial failed: %v", err)
	}
}
