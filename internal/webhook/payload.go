// Package webhook holds the provider callback payload model, signature
// verification, and the event-specific side effects that run after a
// delivery event is persisted.
package webhook

import (
	"encoding/json"
	"fmt"
	"time"
)

// Payload is the provider callback body:
//
//	{ "type": "email.bounced", "created_at": "...", "data": { ... } }
type Payload struct {
	Type      string      `json:"type"`
	CreatedAt time.Time   `json:"created_at"`
	Data      PayloadData `json:"data"`
}

// PayloadData carries the event's email fields. Tags round-trip values set
// at send time and are the most trusted tenant attribution signal.
type PayloadData struct {
	EmailID string   `json:"email_id"`
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Tags    []Tag    `json:"tags"`
}

// Tag is one name/value pair from the provider's tagging mechanism.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// TagValue returns the value of the first tag with the given name.
func (d *PayloadData) TagValue(name string) (string, bool) {
	for _, t := range d.Tags {
		if t.Name == name {
			return t.Value, true
		}
	}
	return "", false
}

// ParsePayload decodes and structurally validates a callback body. The
// event type itself is validated separately against the known set.
func ParsePayload(body []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}
	if p.Type == "" {
		return nil, fmt.Errorf("webhook payload: type is required")
	}
	if p.Data.EmailID == "" {
		return nil, fmt.Errorf("webhook payload: data.email_id is required")
	}
	return &p, nil
}
