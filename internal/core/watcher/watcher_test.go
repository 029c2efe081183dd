// # internal/core/watcher/watcher_test.go
package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewWatcher_RejectsNilCallback(t *testing.T) {
	w, err := NewWatcher(100*time.Millisecond, nil, nil, nil)
	if err == nil {
		t.Fatal("expected error for nil callback")
	}
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("expected os.ErrInvalid, got %v", err)
	}
	if w != nil {
		t.Fatal("expected nil watcher when callback is invalid")
	}
}

func TestWatcher(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 1)
	w, err := NewWatcher(100*time.Millisecond, []string{"exclude_dir"}, []string{"*.exclude"}, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	err = w.Watch([]string{tmpDir})
	if err != nil {
		t.Fatal(err)
	}

	// Create a model file
	testFile := filepath.Join(tmpDir, "trade.rosetta")
	os.WriteFile(testFile, []byte("namespace cdm.test"), 0644)

	select {
	case paths := <-changedFiles:
		found := false
		for _, p := range paths {
			if p == testFile {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected to find %s in changed files %v", testFile, paths)
		}
	case <-time.After(2 * time.Second):
		t.Error("Timed out waiting for file change event")
	}

	// Non-model extensions are filtered out.
	otherFile := filepath.Join(tmpDir, "readme.txt")
	os.WriteFile(otherFile, []byte("not a model"), 0644)

	select {
	case paths := <-changedFiles:
		for _, p := range paths {
			if filepath.Base(p) == "readme.txt" {
				t.Error("Non-model file triggered event")
			}
		}
	case <-time.After(500 * time.Millisecond):
		// Expected
	}

	// New directory should be recursively watched after create.
	subdir := filepath.Join(tmpDir, "newdir")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatal(err)
	}
	subFile := filepath.Join(subdir, "nested.rosetta")
	if err := os.WriteFile(subFile, []byte("namespace cdm.nested"), 0644); err != nil {
		t.Fatal(err)
	}

	foundNested := false
	timeout := time.After(2 * time.Second)
	for !foundNested {
		select {
		case paths := <-changedFiles:
			for _, p := range paths {
				if p == subFile {
					foundNested = true
					break
				}
			}
		case <-timeout:
			t.Fatal("timed out waiting for nested file event in newly created directory")
		}
	}
}

func TestWatcher_ExcludePatterns(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 8)
	w, err := NewWatcher(50*time.Millisecond, nil, []string{"scratch*"}, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	excluded := filepath.Join(tmpDir, "scratch.rosetta")
	os.WriteFile(excluded, []byte("namespace scratch"), 0644)

	select {
	case paths := <-changedFiles:
		t.Errorf("excluded file triggered event: %v", paths)
	case <-time.After(300 * time.Millisecond):
		// Expected
	}
}

func TestWatcher_DebounceBatchesChanges(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 8)
	w, err := NewWatcher(150*time.Millisecond, nil, nil, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	first := filepath.Join(tmpDir, "a.rosetta")
	second := filepath.Join(tmpDir, "b.rosetta")
	os.WriteFile(first, []byte("namespace a"), 0644)
	os.WriteFile(second, []byte("namespace b"), 0644)

	select {
	case paths := <-changedFiles:
		if len(paths) < 2 {
			// Depending on event timing the second write may land in a
			// second flush; accept either one or two batches.
			select {
			case more := <-changedFiles:
				paths = append(paths, more...)
			case <-time.After(time.Second):
			}
		}
		seen := make(map[string]bool, len(paths))
		for _, p := range paths {
			seen[filepath.Base(p)] = true
		}
		if !seen["a.rosetta"] || !seen["b.rosetta"] {
			t.Errorf("expected both files in debounced batches, got %v", paths)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced batch")
	}
}
