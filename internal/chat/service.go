// Package chat implements the stateless completion service: it reconstructs
// conversational context from the session store, calls the text capability,
// and records both sides of the exchange.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/haeundev/storylab/internal/ai"
	"github.com/haeundev/storylab/internal/metrics"
	"github.com/haeundev/storylab/internal/session"
)

// persona is prepended to every completion context. The assistant plays a
// kindergarten teacher co-authoring with a child.
const persona = `You are a kindergarten and elementary school teacher.
* Speak brightly, the way you would teach a young child.
* Keep sentences short and direct, at an elementary reading level.
* Never use emoji.`

// Service produces assistant replies grounded in the stored history.
type Service struct {
	store     session.Store
	completer ai.Completer
	timeout   time.Duration
}

// NewService creates a completion service. timeout bounds each capability
// call; overrun surfaces as a generation failure rather than a hang.
func NewService(store session.Store, completer ai.Completer, timeout time.Duration) *Service {
	return &Service{store: store, completer: completer, timeout: timeout}
}

// Send generates the next assistant utterance for prompt and appends both the
// prompt and the reply to the session history. The stored log is the only
// context source; nothing is cached between calls.
func (s *Service) Send(ctx context.Context, key, prompt string) (string, error) {
	history, err := s.store.History(ctx, key)
	if err != nil {
		return "", err
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := s.completer.Complete(callCtx, buildContext(history, prompt))
	metrics.ObserveCompletion(time.Since(start), err)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: completion timed out after %s", ai.ErrGenerationFailed, s.timeout)
		}
		if errors.Is(err, ai.ErrGenerationFailed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ai.ErrGenerationFailed, err)
	}

	if err := s.store.Append(ctx, key, session.RoleUser, prompt); err != nil {
		return "", err
	}
	if err := s.store.Append(ctx, key, session.RoleAssistant, reply); err != nil {
		return "", err
	}
	return reply, nil
}

// buildContext assembles persona + transcript + the new prompt.
func buildContext(history []session.Entry, prompt string) string {
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\n")
	for _, entry := range history {
		if entry.Role == session.RoleUser {
			b.WriteString("User: ")
		} else {
			b.WriteString("Assistant: ")
		}
		b.WriteString(entry.Text)
		b.WriteString("\n")
	}
	b.WriteString("User: ")
	b.WriteString(prompt)
	b.WriteString("\nAssistant:")
	return b.String()
}
