package client

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Composer states.
type State int

const (
	// StateEditing accepts text and attachment changes.
	StateEditing State = iota
	// StateSending means the user turn is being submitted.
	StateSending
	// StateStreaming means assistant fragments are arriving.
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	default:
		return "editing"
	}
}

// ErrNotSending is returned when streaming is started out of order.
var ErrNotSending = errors.New("composer is not sending")

// Attachment is one entry in the composer's attachment side-list
type Attachment struct {
	ID   string
	Name string
	Size int64
	Type string
}

// Composer is the per-conversation send state machine. The attachment list
// is independent of the text state, and the assistant draft buffer holds
// streamed fragments until the server-finalized message replaces it. Not
// safe for concurrent use.
type Composer struct {
	state       State
	text        string
	attachments []Attachment
	draft       strings.Builder
}

// NewComposer creates a composer in the editing state
func NewComposer() *Composer {
	return &Composer{state: StateEditing}
}

// State returns the current state
func (c *Composer) State() State { return c.state }

// Text returns the current text
func (c *Composer) Text() string { return c.text }

// SetText replaces the composer text; ignored outside editing
func (c *Composer) SetText(text string) {
	if c.state == StateEditing {
		c.text = text
	}
}

// Attach adds a file to the attachment side-list and returns its entry
func (c *Composer) Attach(name string, size int64, mimeType string) Attachment {
	att := Attachment{
		ID:   uuid.New().String(),
		Name: name,
		Size: size,
		Type: mimeType,
	}
	c.attachments = append(c.attachments, att)
	return att
}

// Detach removes an attachment by id
func (c *Composer) Detach(id string) {
	kept := c.attachments[:0]
	for _, att := range c.attachments {
		if att.ID != id {
			kept = append(kept, att)
		}
	}
	c.attachments = kept
}

// Attachments returns the attachment side-list
func (c *Composer) Attachments() []Attachment { return c.attachments }

// CanSend reports whether a send would do anything: empty text with no
// attachments is a no-op.
func (c *Composer) CanSend() bool {
	return c.state == StateEditing &&
		(strings.TrimSpace(c.text) != "" || len(c.attachments) > 0)
}

// PressEnter handles the enter key: enter without shift triggers a send,
// shift-enter stays in editing. Returns the message to submit, or ok=false
// when nothing should be sent.
func (c *Composer) PressEnter(shift bool) (message string, ok bool) {
	if shift || !c.CanSend() {
		return "", false
	}
	return c.BeginSend()
}

// BeginSend moves editing -> sending and hands back the composed text,
// clearing the text and attachments.
func (c *Composer) BeginSend() (message string, ok bool) {
	if !c.CanSend() {
		return "", false
	}

	message = strings.TrimSpace(c.text)
	c.text = ""
	c.attachments = nil
	c.state = StateSending
	return message, true
}

// BeginStreaming moves sending -> streaming and resets the draft buffer
func (c *Composer) BeginStreaming() error {
	if c.state != StateSending {
		return ErrNotSending
	}
	c.draft.Reset()
	c.state = StateStreaming
	return nil
}

// AppendFragment accumulates one streamed fragment into the draft
func (c *Composer) AppendFragment(content string) {
	if c.state == StateStreaming {
		c.draft.WriteString(content)
	}
}

// Draft returns the assistant draft accumulated so far
func (c *Composer) Draft() string { return c.draft.String() }

// FinishStreaming returns the final draft and moves back to editing. The
// caller is expected to refetch messages: the server remains the source of
// truth for the finalized reply.
func (c *Composer) FinishStreaming() string {
	final := c.draft.String()
	c.draft.Reset()
	c.state = StateEditing
	return final
}

// Abort discards any in-flight send or draft and returns to editing
func (c *Composer) Abort() {
	c.draft.Reset()
	c.state = StateEditing
}
