package illustration

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

type fakeGenerator struct {
	mu      sync.Mutex
	calls   int32
	prompts []string
	// fail decides per call (1-based) whether generation errors.
	fail func(call int) bool
}

func (g *fakeGenerator) GenerateImage(_ context.Context, prompt string) ([]byte, error) {
	call := int(atomic.AddInt32(&g.calls, 1))
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	if g.fail != nil && g.fail(call) {
		return nil, errors.New("generation refused")
	}
	return []byte("png-bytes-" + strconv.Itoa(call)), nil
}

type fakeCompleter struct {
	reply string
	err   error
	calls int
}

func (c *fakeCompleter) Complete(_ context.Context, _ string) (string, error) {
	c.calls++
	return c.reply, c.err
}

type fakeSaver struct {
	mu    sync.Mutex
	saved [][]byte
	err   error
}

func (s *fakeSaver) Save(data []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.saved = append(s.saved, data)
	return "/static/illustrations/" + strconv.Itoa(len(s.saved)) + ".png", nil
}

func TestCoordinator_FullBatchFirstTry(t *testing.T) {
	gen := &fakeGenerator{}
	completer := &fakeCompleter{}
	c := NewCoordinator(gen, completer, &fakeSaver{})

	urls := c.Generate(context.Background(), "a dragon", 3)

	if len(urls) != 2 {
		t.Fatalf("urls = %v, want 2", urls)
	}
	if gen.calls != 2 {
		t.Errorf("generator calls = %d, want 2", gen.calls)
	}
	if completer.calls != 0 {
		t.Errorf("repair calls = %d, want 0", completer.calls)
	}
	for _, prompt := range gen.prompts {
		if !strings.HasPrefix(prompt, stylePrefix) {
			t.Errorf("prompt %q missing style prefix", prompt)
		}
		if !strings.HasSuffix(prompt, "a dragon") {
			t.Errorf("prompt %q missing scene text", prompt)
		}
	}
}

func TestCoordinator_PartialFailureKeepsSibling(t *testing.T) {
	gen := &fakeGenerator{fail: func(call int) bool { return call == 1 }}
	c := NewCoordinator(gen, &fakeCompleter{}, &fakeSaver{})

	urls := c.Generate(context.Background(), "a dragon", 0)

	if len(urls) != 1 {
		t.Fatalf("urls = %v, want exactly the surviving attempt", urls)
	}
}

func TestCoordinator_RepairThenSucceed(t *testing.T) {
	// Both attempts of the first batch fail, the repaired batch succeeds.
	gen := &fakeGenerator{fail: func(call int) bool { return call <= 2 }}
	completer := &fakeCompleter{reply: "a gentle dragon"}
	c := NewCoordinator(gen, completer, &fakeSaver{})

	urls := c.Generate(context.Background(), "a scary dragon", 3)

	if len(urls) != 2 {
		t.Fatalf("urls = %v, want 2 after repair", urls)
	}
	if completer.calls != 1 {
		t.Errorf("repair calls = %d, want 1", completer.calls)
	}
	last := gen.prompts[len(gen.prompts)-1]
	if !strings.HasSuffix(last, "a gentle dragon") {
		t.Errorf("retry prompt %q, want repaired scene text", last)
	}
}

func TestCoordinator_RetriesBounded(t *testing.T) {
	gen := &fakeGenerator{fail: func(int) bool { return true }}
	completer := &fakeCompleter{reply: "still refused"}
	c := NewCoordinator(gen, completer, &fakeSaver{})

	retries := 3
	urls := c.Generate(context.Background(), "a dragon", retries)

	if len(urls) != 0 {
		t.Fatalf("urls = %v, want empty after exhausted retries", urls)
	}
	wantCalls := int32(2 * (retries + 1))
	if gen.calls != wantCalls {
		t.Errorf("generator calls = %d, want %d", gen.calls, wantCalls)
	}
	if completer.calls != retries {
		t.Errorf("repair calls = %d, want %d", completer.calls, retries)
	}
}

func TestCoordinator_RepairFailureReusesPrompt(t *testing.T) {
	gen := &fakeGenerator{fail: func(call int) bool { return call <= 2 }}
	completer := &fakeCompleter{err: errors.New("refiner down")}
	c := NewCoordinator(gen, completer, &fakeSaver{})

	urls := c.Generate(context.Background(), "a dragon", 1)

	if len(urls) != 2 {
		t.Fatalf("urls = %v, want 2 from retried original prompt", urls)
	}
	last := gen.prompts[len(gen.prompts)-1]
	if !strings.HasSuffix(last, "a dragon") {
		t.Errorf("retry prompt %q, want original scene text", last)
	}
}

func TestCoordinator_CancelledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := &fakeGenerator{fail: func(int) bool { return true }}
	completer := &fakeCompleter{}
	c := NewCoordinator(gen, completer, &fakeSaver{})

	urls := c.Generate(ctx, "a dragon", 5)

	if len(urls) != 0 {
		t.Fatalf("urls = %v, want empty", urls)
	}
	if gen.calls != 2 {
		t.Errorf("generator calls = %d, want one batch only", gen.calls)
	}
	if completer.calls != 0 {
		t.Errorf("repair calls = %d, want 0 after cancellation", completer.calls)
	}
}

func TestCoordinator_SaveFailureDropsAttempt(t *testing.T) {
	gen := &fakeGenerator{}
	c := NewCoordinator(gen, &fakeCompleter{}, &fakeSaver{err: errors.New("disk full")})

	urls := c.Generate(context.Background(), "a dragon", 0)

	if len(urls) != 0 {
		t.Fatalf("urls = %v, want empty when saving fails", urls)
	}
}
