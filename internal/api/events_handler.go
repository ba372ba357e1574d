package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/seojin/mailflow/internal/delivery"
	"github.com/seojin/mailflow/internal/logger"
	"github.com/seojin/mailflow/internal/storage"
)

// timeFormat is the wire format for timestamps in API responses.
const timeFormat = time.RFC3339Nano

// eventView is the wire shape of one delivery event.
type eventView struct {
	ID         string            `json:"id"`
	TenantID   string            `json:"tenantId"`
	EmailID    string            `json:"emailId"`
	EventType  string            `json:"eventType"`
	OccurredAt string            `json:"occurredAt"`
	WebhookID  string            `json:"webhookId,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Processed  bool              `json:"processed"`
}

// EventLister is the query surface the events endpoint needs.
type EventLister interface {
	ListEvents(ctx context.Context, filter storage.EventFilter) ([]*delivery.Event, error)
}

// ListEventsHandler handles GET /webhooks/email-events: queries stored
// delivery events with optional tenantId, emailId, eventType, limit, and
// offset parameters.
func ListEventsHandler(events EventLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())
		q := r.URL.Query()

		filter := storage.EventFilter{
			TenantID: q.Get("tenantId"),
			EmailID:  q.Get("emailId"),
		}

		if raw := q.Get("eventType"); raw != "" {
			t, err := delivery.ParseEventType(raw)
			if err != nil {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			filter.EventType = string(t)
		}

		var err error
		if filter.Limit, err = parseIntParam(q.Get("limit")); err != nil {
			respondError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		if filter.Offset, err = parseIntParam(q.Get("offset")); err != nil {
			respondError(w, http.StatusBadRequest, "offset must be an integer")
			return
		}
		filter.Normalize()

		list, err := events.ListEvents(r.Context(), filter)
		if err != nil {
			log.Error().Err(err).Msg("list events failed")
			respondError(w, http.StatusInternalServerError, "failed to query events")
			return
		}

		views := make([]eventView, 0, len(list))
		for _, evt := range list {
			views = append(views, eventView{
				ID:         evt.ID.String(),
				TenantID:   evt.TenantID,
				EmailID:    evt.EmailID,
				EventType:  string(evt.Type),
				OccurredAt: evt.OccurredAt.Format(timeFormat),
				WebhookID:  evt.WebhookID,
				Metadata:   evt.Metadata,
				Processed:  evt.Processed,
			})
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{
			"events": views,
			"pagination": map[string]int{
				"limit":  filter.Limit,
				"offset": filter.Offset,
				"count":  len(views),
			},
		})
	}
}

func parseIntParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
