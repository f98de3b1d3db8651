package model

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusNotStarted Status = "not-started"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentFile  AttachmentType = "file"
)

// Link is owned by its task and only lives as long as the task does.
type Link struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Attachment is owned by its task and only lives as long as the task does.
type Attachment struct {
	ID   string         `json:"id"`
	Type AttachmentType `json:"type"`
	Name string         `json:"name"`
	URL  string         `json:"url"`
}

type Task struct {
	ID          int64        `json:"id"`
	UserID      string       `json:"user_id"`
	Title       string       `json:"title"`
	Date        time.Time    `json:"date"`
	Status      Status       `json:"status"`
	Important   bool         `json:"important"`
	Notes       string       `json:"notes,omitempty"`
	Links       []Link       `json:"links,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Validate checks the fields every stored task must satisfy.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: task title is required", ErrValidation)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, t.Status)
	}
	for _, l := range t.Links {
		if strings.TrimSpace(l.URL) == "" {
			return fmt.Errorf("%w: link url is required", ErrValidation)
		}
	}
	for _, a := range t.Attachments {
		if a.Type != AttachmentImage && a.Type != AttachmentFile {
			return fmt.Errorf("%w: invalid attachment type %q", ErrValidation, a.Type)
		}
		if strings.TrimSpace(a.URL) == "" {
			return fmt.Errorf("%w: attachment url is required", ErrValidation)
		}
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate stored sub-objects.
func (t Task) Clone() Task {
	if t.Links != nil {
		t.Links = append([]Link(nil), t.Links...)
	}
	if t.Attachments != nil {
		t.Attachments = append([]Attachment(nil), t.Attachments...)
	}
	return t
}
