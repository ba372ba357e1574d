package api

import (
	"encoding/json"
	"net/http"

	"github.com/seojin/mailflow/internal/logger"
	"github.com/seojin/mailflow/internal/queue"
)

// dlqReprocessRequest is the wire shape of POST /dlq/reprocess.
type dlqReprocessRequest struct {
	TaskIDs []string `json:"taskIds"`
}

// DLQReprocessHandler handles POST /dlq/reprocess: moves dead-lettered
// orchestration tasks back onto the primary queue.
func DLQReprocessHandler(dlq queue.DeadLetterQueue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		var req dlqReprocessRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(req.TaskIDs) == 0 {
			respondError(w, http.StatusBadRequest, "taskIds is required")
			return
		}

		reprocessed, err := dlq.Reprocess(r.Context(), req.TaskIDs)
		if err != nil {
			log.Error().Err(err).Int("reprocessed", reprocessed).Msg("dlq reprocess failed")
			respondError(w, http.StatusInternalServerError, "failed to reprocess tasks")
			return
		}

		respondJSON(w, http.StatusOK, map[string]int{"reprocessed": reprocessed})
	}
}
