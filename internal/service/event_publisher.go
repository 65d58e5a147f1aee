package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// EventSubmissionGraded is emitted after every successful grading write.
const EventSubmissionGraded = "submission.graded"

// GradedEvent is the payload published when a submission's grade changes.
type GradedEvent struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	SubmissionID uint      `json:"submission_id"`
	AssessmentID uint      `json:"assessment_id"`
	CourseID     uint      `json:"course_id"`
	StudentID    uint      `json:"student_id"`
	Score        float64   `json:"score"`
	MaxScore     float64   `json:"max_score"`
	Percentage   float64   `json:"percentage"`
	LetterGrade  string    `json:"letter_grade"`
	Manual       bool      `json:"manual"`
	GradedAt     time.Time `json:"graded_at"`
}

// EventPublisher delivers grading events to downstream consumers.
type EventPublisher interface {
	PublishGraded(ctx context.Context, event GradedEvent) error
}

type natsEventPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSEventPublisher publishes events on "<subject>.<event type>". A nil
// connection yields a publisher that drops every event.
func NewNATSEventPublisher(conn *nats.Conn, subject string) EventPublisher {
	subject = strings.TrimSuffix(strings.TrimSpace(subject), ".")
	if subject == "" {
		subject = "gema.grading"
	}
	return &natsEventPublisher{conn: conn, subject: subject}
}

func (p *natsEventPublisher) PublishGraded(ctx context.Context, event GradedEvent) error {
	if p.conn == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Type == "" {
		event.Type = EventSubmissionGraded
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.conn.Publish(p.subject+"."+event.Type, payload)
}
