package browser

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/julestools/julesmcp/internal/config"
)

// stubAuto satisfies Automation without a browser. Tests only pass it
// through Do, they never call its methods.
type stubAuto struct {
	Automation
}

func testManager() *Manager {
	m := NewManager(config.Default(), nil)
	m.auto = stubAuto{}
	return m
}

func TestDoRunsOperation(t *testing.T) {
	m := testManager()

	ran := false
	err := m.Do(context.Background(), "probe", func(a Automation) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !ran {
		t.Fatal("operation did not run")
	}
}

func TestDoPropagatesOperationError(t *testing.T) {
	m := testManager()

	opErr := errors.New("element not found")
	err := m.Do(context.Background(), "probe", func(a Automation) error {
		return opErr
	})
	if !errors.Is(err, opErr) {
		t.Fatalf("Do() error = %v, want %v", err, opErr)
	}
}

func TestDoSerializesOperations(t *testing.T) {
	m := testManager()

	release := make(chan struct{})
	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = m.Do(context.Background(), "slow", func(a Automation) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	// Second operation cannot start while the first holds the gate.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := m.Do(ctx, "blocked", func(a Automation) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Do() error = %v, want context.DeadlineExceeded", err)
	}

	close(release)
	wg.Wait()

	// Gate is free again.
	if err := m.Do(context.Background(), "after", func(a Automation) error { return nil }); err != nil {
		t.Fatalf("Do() after release error = %v", err)
	}
}

func TestDoNeverOverlaps(t *testing.T) {
	m := testManager()

	var mu sync.Mutex
	running := 0
	maxRunning := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Do(context.Background(), "op", func(a Automation) error {
				mu.Lock()
				running++
				if running > maxRunning {
					maxRunning = running
				}
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if maxRunning != 1 {
		t.Fatalf("max concurrent operations = %d, want 1", maxRunning)
	}
}

func TestDoAfterClose(t *testing.T) {
	m := testManager()
	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	err := m.Do(context.Background(), "probe", func(a Automation) error { return nil })
	if err == nil {
		t.Fatal("Do() after Close() succeeded, want error")
	}

	// Close is idempotent.
	if err := m.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestActive(t *testing.T) {
	m := NewManager(config.Default(), nil)
	if m.Active() {
		t.Fatal("Active() = true before any operation")
	}

	m.auto = stubAuto{}
	if !m.Active() {
		t.Fatal("Active() = false with live automation")
	}
}

func TestSaveCookiesWithoutSession(t *testing.T) {
	m := NewManager(config.Default(), nil)
	if err := m.SaveCookies(context.Background(), "unused.json"); err == nil {
		t.Fatal("SaveCookies() without session succeeded, want error")
	}
}
