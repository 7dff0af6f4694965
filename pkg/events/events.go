package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// SubjectSubmissionStored is published after a submission has been persisted.
const SubjectSubmissionStored = "techlearn.assessment.submission.stored"

// SubmissionStored describes a persisted submission.
type SubmissionStored struct {
	EventID          string    `json:"event_id"`
	SubmissionID     uint      `json:"submission_id"`
	RoundID          uint      `json:"round_id"`
	AccessKey        string    `json:"access_key"`
	Identity         string    `json:"identity"`
	TotalScore       int       `json:"total_score"`
	MaxPossibleScore int       `json:"max_possible_score"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// Publisher fans submission events out to interested consumers.
type Publisher interface {
	PublishSubmissionStored(ctx context.Context, event SubmissionStored) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// PublishSubmissionStored implements Publisher.
func (NopPublisher) PublishSubmissionStored(context.Context, SubmissionStored) error {
	return nil
}

// NATSPublisher publishes events on a NATS connection.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher constructs a publisher; an empty subject uses SubjectSubmissionStored.
func NewNATSPublisher(conn *nats.Conn, subject string) *NATSPublisher {
	if subject == "" {
		subject = SubjectSubmissionStored
	}
	return &NATSPublisher{conn: conn, subject: subject}
}

// PublishSubmissionStored encodes the event as JSON and publishes it.
func (p *NATSPublisher) PublishSubmissionStored(ctx context.Context, event SubmissionStored) error {
	if p.conn == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := encode(event)
	if err != nil {
		return err
	}
	return p.conn.Publish(p.subject, payload)
}

func encode(event SubmissionStored) ([]byte, error) {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	return json.Marshal(event)
}
