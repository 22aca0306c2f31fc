package ptysup

import (
	"strings"
	"testing"
	"time"
)

func TestSpawnWriteAndRead(t *testing.T) {
	sup, err := Spawn("sh", []string{"-c", "cat"}, nil, 80, 24)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer sup.Close()

	ch := sup.Subscribe()
	defer sup.Unsubscribe(ch)

	if err := sup.Write([]byte("hello\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var collected strings.Builder
	deadline := time.After(2 * time.Second)
	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				t.Fatal("subscriber channel closed before output arrived")
			}
			collected.Write(chunk)
			if strings.Contains(collected.String(), "hello") {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for echoed output, got %q", collected.String())
		}
	}
}

func TestResizeClampsGeometry(t *testing.T) {
	sup, err := Spawn("sh", []string{"-c", "sleep 5"}, nil, 80, 24)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer sup.Close()

	if err := sup.Resize(0, 5000); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	sup.mu.Lock()
	cols, rows := sup.cols, sup.rows
	sup.mu.Unlock()

	if cols != minGeometry || rows != maxGeometry {
		t.Fatalf("Resize clamped to (%d,%d), want (%d,%d)", cols, rows, minGeometry, maxGeometry)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	sup, err := Spawn("sh", []string{"-c", "sleep 5"}, nil, 80, 24)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	if err := sup.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := sup.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
