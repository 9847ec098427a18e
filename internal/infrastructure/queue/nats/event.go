package nats

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// uploadEvent is the body of a documents.uploaded message.
type uploadEvent struct {
	DocumentID  string    `json:"document_id"`
	SessionID   string    `json:"session_id,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

func encodeUploadEvent(subject string, event uploadEvent) (*nats.Msg, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode upload event: %w", err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set("Content-Type", "application/json")
	msg.Header.Set(nats.MsgIdHdr, event.DocumentID)
	return msg, nil
}

func decodeUploadEvent(msg *nats.Msg) (uploadEvent, error) {
	var event uploadEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return uploadEvent{}, fmt.Errorf("decode upload event: %w", err)
	}
	if event.DocumentID == "" {
		return uploadEvent{}, errors.New("decode upload event: missing document_id")
	}
	return event, nil
}
