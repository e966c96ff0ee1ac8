package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/haeundev/storylab/internal/ai"
	"github.com/haeundev/storylab/internal/domain"
	"github.com/haeundev/storylab/internal/metrics"
	"github.com/haeundev/storylab/internal/session"
)

// maxCompletionFailures bounds consecutive completion failures before the
// connection is given up on.
const maxCompletionFailures = 3

// Completion produces assistant replies recorded in the session history.
// Implemented by chat.Service.
type Completion interface {
	Send(ctx context.Context, key, prompt string) (string, error)
}

// ImageBatcher runs one image batch to completion. Implemented by
// illustration.Coordinator.
type ImageBatcher interface {
	Generate(ctx context.Context, prompt string, retries int) []string
}

// ScenePersister is the narrow story-storage contract the machine consumes.
// Implemented by store.Repository.
type ScenePersister interface {
	GetStory(ctx context.Context, storyID int64) (*domain.Story, error)
	CreateStory(ctx context.Context, ownerID, title string) (int64, error)
	CreateScene(ctx context.Context, storyID int64, text, imageURL string) (int64, error)
}

// Config wires a machine's collaborators.
type Config struct {
	Key     string
	OwnerID string
	StoryID int64 // 0 = no story yet

	Store   session.Store
	Chat    Completion
	Images  ImageBatcher
	Scenes  ScenePersister
	Refiner ai.Refiner
	Conn    Conn

	PollInterval time.Duration
	BatchTimeout time.Duration
	ImageRetries int
}

// Machine drives one session's dialogue. All of its working state (chosen
// image, synopsis, pending batch) is transient and reconstructible from the
// session log plus the client's next message; the session store stays the
// sole durable record.
type Machine struct {
	cfg   Config
	state State

	task      *imageTask
	urls      []string
	chosenURL string
	synopsis  string
}

type imageTask struct {
	done   chan struct{}
	urls   []string
	cancel context.CancelFunc
}

// New creates a dialogue machine for one connection.
func New(cfg Config) *Machine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 300 * time.Millisecond
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 3 * time.Minute
	}
	return &Machine{cfg: cfg, state: StateAwaitingIllustrationInfo}
}

// State returns the current state. Exposed for logging and tests.
func (m *Machine) State() State {
	return m.state
}

// Close cancels any outstanding image batch. Safe to call more than once.
func (m *Machine) Close() {
	if m.task != nil {
		m.task.cancel()
	}
}

// Run drives the dialogue until Finished or a fatal error. mode is the
// opening message's type; topic its text.
func (m *Machine) Run(ctx context.Context, mode, topic string) error {
	switch mode {
	case MsgStart:
		m.state = StateAwaitingIllustrationInfo
	case MsgQuiz:
		if m.cfg.StoryID == 0 {
			return ErrQuizNeedsStory
		}
		m.state = StateRunningQuiz
	case MsgExtend:
		if m.cfg.StoryID == 0 {
			return ErrQuizNeedsStory
		}
		m.state = StateExtendingStory
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrProtocolViolation, mode)
	}

	if topic != "" {
		if err := m.cfg.Store.Append(ctx, m.cfg.Key, session.RoleUser, topic); err != nil {
			return err
		}
	}

	for {
		var err error
		switch m.state {
		case StateAwaitingIllustrationInfo:
			err = m.infoLoop(ctx, topic)
		case StateExtendingStory:
			err = m.infoLoop(ctx, extendTopic)
		case StateDraftingSceneSynopsis:
			err = m.synopsisLoop(ctx)
		case StateAwaitingImages:
			err = m.waitForImages(ctx)
		case StateAwaitingUserChoice:
			err = m.handleChoice(ctx)
		case StateAwaitingDraftDecision:
			err = m.reviewDraft(ctx)
		case StateRunningQuiz:
			err = m.quizLoop(ctx)
		case StateFinished:
			return nil
		}
		if err != nil {
			return err
		}
		if m.state == StateFinished {
			return nil
		}
	}
}

// infoLoop gathers illustration details until the assistant signals
// readiness, then launches the background image batch.
func (m *Machine) infoLoop(ctx context.Context, topic string) error {
	reply, err := m.sendPrompt(ctx, buildIllustInfoPrompt(topic))
	if err != nil {
		return err
	}

	for {
		// A flagged reply never advances state, whatever else it contains.
		if strings.Contains(reply, MarkerFlagged) {
			reply, err = m.rejectAndRetry(ctx)
			if err != nil {
				return err
			}
			continue
		}

		if strings.Contains(reply, MarkerIllustReady) {
			prompt := strings.TrimSpace(strings.ReplaceAll(reply, MarkerIllustReady, ""))
			if prompt == "" {
				// Marker without a description: start the loop over.
				return nil
			}
			m.task = m.launchBatch(prompt)
			m.state = StateDraftingSceneSynopsis
			return nil
		}

		reply, err = m.questionTurn(ctx, reply)
		if err != nil {
			return err
		}
	}
}

// synopsisLoop gathers the scene synopsis while images generate, then asks
// for the final prose and polishes it.
func (m *Machine) synopsisLoop(ctx context.Context) error {
	reply, err := m.sendPrompt(ctx, buildSceneSynopsisPrompt())
	if err != nil {
		return err
	}

	for {
		if strings.Contains(reply, MarkerFlagged) {
			reply, err = m.rejectAndRetry(ctx)
			if err != nil {
				return err
			}
			continue
		}

		if strings.Contains(reply, MarkerSceneReady) {
			prose, err := m.sendPrompt(ctx, prosePrompt)
			if err != nil {
				return err
			}
			refined, err := m.cfg.Refiner.Refine(ctx, prose)
			if err != nil {
				slog.Warn("Prose refinement failed, keeping unrefined text",
					"session_key", m.cfg.Key, "error", err)
				refined = prose
			}
			m.synopsis = refined
			m.state = StateAwaitingImages
			return nil
		}

		reply, err = m.questionTurn(ctx, reply)
		if err != nil {
			return err
		}
	}
}

// waitForImages waits for the background batch, staying responsive to
// connection teardown via ctx.
func (m *Machine) waitForImages(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.task.done:
			m.urls = m.task.urls
			if err := m.cfg.Conn.Send(ctx, NewIllustrationEvent(m.urls)); err != nil {
				return err
			}
			m.state = StateAwaitingUserChoice
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// handleChoice records the client's illustration pick and presents the draft.
func (m *Machine) handleChoice(ctx context.Context) error {
	msg, err := m.cfg.Conn.Receive(ctx)
	if err != nil {
		return err
	}
	if msg.Type != MsgChoice {
		return fmt.Errorf("%w: expected choice, got %q", ErrProtocolViolation, msg.Type)
	}
	idx, err := msg.TextInt()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}
	if idx < 0 || idx >= len(m.urls) {
		return fmt.Errorf("%w: choice %d out of range (%d candidates)", ErrProtocolViolation, idx, len(m.urls))
	}

	if err := m.cfg.Store.Append(ctx, m.cfg.Key, session.RoleUser, strconv.Itoa(idx)); err != nil {
		return err
	}

	m.chosenURL = m.urls[idx]
	if err := m.cfg.Conn.Send(ctx, NewDraftEvent(m.synopsis, m.chosenURL)); err != nil {
		return err
	}
	m.state = StateAwaitingDraftDecision
	return nil
}

// reviewDraft handles accept/retry. Anything else is a protocol violation
// that leaves the working state untouched.
func (m *Machine) reviewDraft(ctx context.Context) error {
	msg, err := m.cfg.Conn.Receive(ctx)
	if err != nil {
		return err
	}

	switch msg.Type {
	case MsgAccept:
		return m.acceptDraft(ctx)
	case MsgRetry:
		if err := m.cfg.Store.Append(ctx, m.cfg.Key, session.RoleUser, MsgRetry); err != nil {
			return err
		}
		m.discardDraft()
		m.state = StateAwaitingIllustrationInfo
		return nil
	default:
		return fmt.Errorf("%w: expected accept or retry, got %q", ErrProtocolViolation, msg.Type)
	}
}

func (m *Machine) acceptDraft(ctx context.Context) error {
	if err := m.cfg.Store.Append(ctx, m.cfg.Key, session.RoleUser, MsgAccept); err != nil {
		return err
	}

	storyID := m.cfg.StoryID
	if storyID == 0 {
		id, err := m.cfg.Scenes.CreateStory(ctx, m.cfg.OwnerID, deriveTitle(m.synopsis))
		if err != nil {
			return fmt.Errorf("create story: %w", err)
		}
		storyID = id
	}

	if _, err := m.cfg.Scenes.CreateScene(ctx, storyID, m.synopsis, m.chosenURL); err != nil {
		return fmt.Errorf("persist scene: %w", err)
	}

	if err := m.cfg.Conn.Send(ctx, NewFinalEvent(storyID)); err != nil {
		return err
	}
	if err := m.cfg.Store.Append(ctx, m.cfg.Key, session.RoleAssistant, "final"); err != nil {
		return err
	}
	if err := m.cfg.Store.MarkDone(ctx, m.cfg.Key); err != nil {
		return err
	}

	metrics.SessionsFinished.WithLabelValues("accepted").Inc()
	m.state = StateFinished
	return nil
}

func (m *Machine) discardDraft() {
	if m.task != nil {
		m.task.cancel()
		m.task = nil
	}
	m.urls = nil
	m.chosenURL = ""
	m.synopsis = ""
}

// quizLoop drills the user on a finished story until the connection closes.
func (m *Machine) quizLoop(ctx context.Context) error {
	story, err := m.cfg.Scenes.GetStory(ctx, m.cfg.StoryID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrQuizNeedsStory, err)
	}

	reply, err := m.sendPrompt(ctx, buildQuizQuestionPrompt(story.Title))
	if err != nil {
		return err
	}

	for {
		question, examples := ParseQuestion(reply)
		if err := m.cfg.Conn.Send(ctx, NewQuestionEvent(question, examples)); err != nil {
			return err
		}

		msg, err := m.expectAnswer(ctx)
		if err != nil {
			return err
		}

		feedback, err := m.sendPrompt(ctx, buildQuizFeedbackPrompt(msg.TextString()))
		if err != nil {
			return err
		}
		if err := m.cfg.Conn.Send(ctx, NewFeedbackEvent(feedback)); err != nil {
			return err
		}

		reply, err = m.sendPrompt(ctx, quizNextPrompt)
		if err != nil {
			return err
		}
	}
}

// questionTurn renders an assistant reply as a question event, forwards the
// client's answer, and returns the next assistant reply.
func (m *Machine) questionTurn(ctx context.Context, reply string) (string, error) {
	question, examples := ParseQuestion(reply)
	if err := m.cfg.Conn.Send(ctx, NewQuestionEvent(question, examples)); err != nil {
		return "", err
	}

	msg, err := m.expectAnswer(ctx)
	if err != nil {
		return "", err
	}
	return m.sendPrompt(ctx, msg.TextString())
}

// rejectAndRetry emits the rejection event and waits for a fresh answer in
// the same state.
func (m *Machine) rejectAndRetry(ctx context.Context) (string, error) {
	if err := m.cfg.Conn.Send(ctx, NewRejectedEvent()); err != nil {
		return "", err
	}
	msg, err := m.expectAnswer(ctx)
	if err != nil {
		return "", err
	}
	return m.sendPrompt(ctx, msg.TextString())
}

func (m *Machine) expectAnswer(ctx context.Context) (ClientMessage, error) {
	msg, err := m.cfg.Conn.Receive(ctx)
	if err != nil {
		return ClientMessage{}, err
	}
	if msg.Type != MsgAnswer {
		return ClientMessage{}, fmt.Errorf("%w: expected answer, got %q", ErrProtocolViolation, msg.Type)
	}
	return msg, nil
}

// sendPrompt calls the completion service, recovering from transient
// generation failures by apologizing and asking the user to try again.
// After maxCompletionFailures consecutive failures the error is fatal.
func (m *Machine) sendPrompt(ctx context.Context, prompt string) (string, error) {
	var failures int
	for {
		reply, err := m.cfg.Chat.Send(ctx, m.cfg.Key, prompt)
		if err == nil {
			return reply, nil
		}
		if !errors.Is(err, ai.ErrGenerationFailed) {
			return "", err
		}

		failures++
		slog.Warn("Completion failed", "session_key", m.cfg.Key, "failures", failures, "error", err)
		if failures >= maxCompletionFailures {
			return "", err
		}

		if sendErr := m.cfg.Conn.Send(ctx, NewQuestionEvent(apologyText, nil)); sendErr != nil {
			return "", sendErr
		}
		msg, recvErr := m.expectAnswer(ctx)
		if recvErr != nil {
			return "", recvErr
		}
		prompt = msg.TextString()
	}
}

// launchBatch starts the image batch detached from the connection context:
// an abrupt disconnect does not abort it, the generous timeout (or an
// explicit Close) does.
func (m *Machine) launchBatch(prompt string) *imageTask {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.BatchTimeout)
	task := &imageTask{done: make(chan struct{}), cancel: cancel}

	go func() {
		defer cancel()
		task.urls = m.cfg.Images.Generate(ctx, prompt, m.cfg.ImageRetries)
		close(task.done)
	}()
	return task
}

// deriveTitle picks a story title from the accepted synopsis.
func deriveTitle(synopsis string) string {
	line := synopsis
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "Untitled story"
	}
	runes := []rune(line)
	if len(runes) > 80 {
		return string(runes[:80])
	}
	return line
}
