package dialogue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Client message types accepted by the state machine.
const (
	MsgStart  = "start"
	MsgQuiz   = "quiz"
	MsgExtend = "extend"
	MsgAnswer = "answer"
	MsgChoice = "choice"
	MsgAccept = "accept"
	MsgRetry  = "retry"
)

// ClientMessage is one inbound protocol message. Text is kept raw because
// its type depends on the message: free text for start/answer, an index for
// choice, absent for accept/retry.
type ClientMessage struct {
	Type string          `json:"type"`
	Text json.RawMessage `json:"text,omitempty"`
}

// TextString returns the text payload as a string.
func (m ClientMessage) TextString() string {
	if len(m.Text) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(m.Text, &s); err == nil {
		return s
	}
	return strings.Trim(string(m.Text), `"`)
}

// TextInt returns the text payload as an integer index.
func (m ClientMessage) TextInt() (int, error) {
	if len(m.Text) == 0 {
		return 0, fmt.Errorf("message carries no index")
	}
	var n int
	if err := json.Unmarshal(m.Text, &n); err == nil {
		return n, nil
	}
	// Tolerate a quoted number.
	n, err := strconv.Atoi(strings.Trim(string(m.Text), `"`))
	if err != nil {
		return 0, fmt.Errorf("message text %q is not an index", string(m.Text))
	}
	return n, nil
}

// Outbound events. Each carries its own "type" discriminator.

// QuestionEvent asks the user for more information.
type QuestionEvent struct {
	Type     string   `json:"type"`
	Text     string   `json:"text"`
	Examples []string `json:"examples"`
}

// NewQuestionEvent builds a question event; examples is never nil on the wire.
func NewQuestionEvent(text string, examples []string) QuestionEvent {
	if examples == nil {
		examples = []string{}
	}
	return QuestionEvent{Type: "question", Text: text, Examples: examples}
}

// RejectedEvent signals flagged content; the client should re-answer.
type RejectedEvent struct {
	Type     string   `json:"type"`
	Text     string   `json:"text"`
	Examples []string `json:"examples"`
}

// NewRejectedEvent builds the fixed-shape rejection event.
func NewRejectedEvent() RejectedEvent {
	return RejectedEvent{Type: "rejected", Text: "", Examples: []string{}}
}

// IllustrationEvent delivers the generated candidate images (0-2 URLs).
type IllustrationEvent struct {
	Type string   `json:"type"`
	URLs []string `json:"urls"`
}

// NewIllustrationEvent builds an illustration event; urls is never nil on
// the wire.
func NewIllustrationEvent(urls []string) IllustrationEvent {
	if urls == nil {
		urls = []string{}
	}
	return IllustrationEvent{Type: "illustration", URLs: urls}
}

// DraftEvent presents the candidate scene for accept/retry.
type DraftEvent struct {
	Type     string `json:"type"`
	Synopsis string `json:"synopsis"`
	Image    string `json:"image"`
}

// NewDraftEvent builds a draft event.
func NewDraftEvent(synopsis, image string) DraftEvent {
	return DraftEvent{Type: "draft", Synopsis: synopsis, Image: image}
}

// FinalEvent confirms the scene was persisted.
type FinalEvent struct {
	Type    string `json:"type"`
	StoryID int64  `json:"story_id,omitempty"`
}

// NewFinalEvent builds a final event.
func NewFinalEvent(storyID int64) FinalEvent {
	return FinalEvent{Type: "final", StoryID: storyID}
}

// NoticeEvent carries an informational broadcast, such as a peer joining a
// shared room.
type NoticeEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewNoticeEvent builds a notice event.
func NewNoticeEvent(text string) NoticeEvent {
	return NoticeEvent{Type: "notice", Text: text}
}

// FeedbackEvent carries quiz answer feedback.
type FeedbackEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewFeedbackEvent builds a feedback event.
func NewFeedbackEvent(text string) FeedbackEvent {
	return FeedbackEvent{Type: "feedback", Text: text}
}

// Conn is the machine's view of the client connection: send one event,
// receive one message. Exactly one Receive is outstanding at a time.
type Conn interface {
	Send(ctx context.Context, event any) error
	Receive(ctx context.Context) (ClientMessage, error)
}
