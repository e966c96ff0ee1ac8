// Package dialogue drives the turn-taking state machine that co-authors a
// story scene (or runs a quiz) over one client connection.
package dialogue

import "errors"

// State is the orchestrator's control variable. Exactly one state is active
// per session.
type State int

const (
	// StateAwaitingIllustrationInfo collects illustration details via Q&A.
	StateAwaitingIllustrationInfo State = iota
	// StateDraftingSceneSynopsis collects synopsis details via Q&A while the
	// image batch runs in the background.
	StateDraftingSceneSynopsis
	// StateAwaitingImages polls the background image batch.
	StateAwaitingImages
	// StateAwaitingUserChoice waits for the client to pick an illustration.
	StateAwaitingUserChoice
	// StateAwaitingDraftDecision waits for accept/retry on the draft.
	StateAwaitingDraftDecision
	// StateRunningQuiz loops question/feedback until the connection closes.
	StateRunningQuiz
	// StateExtendingStory collects info for the next scene of an existing story.
	StateExtendingStory
	// StateFinished is terminal.
	StateFinished
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateAwaitingIllustrationInfo:
		return "awaiting_illustration_info"
	case StateDraftingSceneSynopsis:
		return "drafting_scene_synopsis"
	case StateAwaitingImages:
		return "awaiting_images"
	case StateAwaitingUserChoice:
		return "awaiting_user_choice"
	case StateAwaitingDraftDecision:
		return "awaiting_draft_decision"
	case StateRunningQuiz:
		return "running_quiz"
	case StateExtendingStory:
		return "extending_story"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Sentinel markers the assistant embeds in replies to signal phase
// completion. A flagged-content marker takes priority over both.
const (
	MarkerIllustReady = "ILLUST_OK"
	MarkerSceneReady  = "SCENE_OK"
	MarkerFlagged     = "WARNING"
)

// ErrProtocolViolation indicates the client sent a message whose type or
// shape does not match the current state. Fatal to the connection.
var ErrProtocolViolation = errors.New("protocol violation")

// ErrQuizNeedsStory indicates quiz or extend mode was requested on a session
// with no target story.
var ErrQuizNeedsStory = errors.New("mode requires a story-bound session")
