package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/seojin/mailflow/internal/delivery"
	"github.com/seojin/mailflow/internal/logger"
	"github.com/seojin/mailflow/internal/workflow"
)

// submitEmailRequest is the wire shape of POST /emails.
type submitEmailRequest struct {
	EmailID          string   `json:"emailId"`
	TenantID         string   `json:"tenantId"`
	From             string   `json:"from"`
	To               []string `json:"to"`
	Subject          string   `json:"subject"`
	Body             string   `json:"body"`
	ScheduledAt      string   `json:"scheduledAt,omitempty"`
	RequiresApproval bool     `json:"requiresApproval"`
	ReviewerID       string   `json:"reviewerId,omitempty"`

	Overrides *overridesRequest `json:"overrides,omitempty"`
}

// overridesRequest exposes per-request policy overrides with durations in
// seconds, which travel better over JSON than nanosecond counts.
type overridesRequest struct {
	MaxAttempts            int `json:"maxAttempts,omitempty"`
	RetryIntervalSeconds   int `json:"retryIntervalSeconds,omitempty"`
	ActivityTimeoutSeconds int `json:"activityTimeoutSeconds,omitempty"`
	ApprovalTimeoutSeconds int `json:"approvalTimeoutSeconds,omitempty"`
}

func (o *overridesRequest) toPolicy() *delivery.PolicyOverrides {
	if o == nil {
		return nil
	}
	return &delivery.PolicyOverrides{
		MaxAttempts:     o.MaxAttempts,
		RetryInterval:   time.Duration(o.RetryIntervalSeconds) * time.Second,
		ActivityTimeout: time.Duration(o.ActivityTimeoutSeconds) * time.Second,
		ApprovalTimeout: time.Duration(o.ApprovalTimeoutSeconds) * time.Second,
	}
}

// decisionRequest carries the optional reason of a reject or cancel.
type decisionRequest struct {
	Reason string `json:"reason,omitempty"`
}

// instanceView is the wire shape of a workflow instance.
type instanceView struct {
	EmailID           string `json:"emailId"`
	TenantID          string `json:"tenantId"`
	State             string `json:"state"`
	Attempt           int    `json:"attempt"`
	LastError         string `json:"lastError,omitempty"`
	ProviderMessageID string `json:"providerMessageId,omitempty"`
	CreatedAt         string `json:"createdAt"`
	UpdatedAt         string `json:"updatedAt"`
}

func viewOf(inst *workflow.Instance) instanceView {
	return instanceView{
		EmailID:           inst.EmailID,
		TenantID:          inst.TenantID,
		State:             string(inst.State),
		Attempt:           inst.Attempt,
		LastError:         inst.LastError,
		ProviderMessageID: inst.ProviderMessageID,
		CreatedAt:         inst.CreatedAt.Format(timeFormat),
		UpdatedAt:         inst.UpdatedAt.Format(timeFormat),
	}
}

// SubmitEmailHandler handles POST /emails: persists a new delivery workflow
// and hands it to the orchestrator. A missing emailId is generated so
// callers without their own IDs still get idempotent submissions if they
// pass one.
func SubmitEmailHandler(svc *workflow.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		var req submitEmailRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if req.EmailID == "" {
			req.EmailID = uuid.New().String()
		}

		sendReq := delivery.SendRequest{
			EmailID:          req.EmailID,
			TenantID:         req.TenantID,
			From:             req.From,
			To:               req.To,
			Subject:          req.Subject,
			Body:             req.Body,
			RequiresApproval: req.RequiresApproval,
			ReviewerID:       req.ReviewerID,
			Overrides:        req.Overrides.toPolicy(),
		}
		if req.ScheduledAt != "" {
			at, err := time.Parse(time.RFC3339, req.ScheduledAt)
			if err != nil {
				respondError(w, http.StatusBadRequest, "scheduledAt must be RFC3339")
				return
			}
			sendReq.ScheduledAt = &at
		}

		inst, err := svc.Start(r.Context(), sendReq)
		if err != nil {
			switch {
			case errors.Is(err, workflow.ErrAlreadyExists):
				respondError(w, http.StatusConflict, err.Error())
			case errors.Is(err, delivery.ErrInvalidRequest):
				respondError(w, http.StatusBadRequest, err.Error())
			default:
				log.Error().Err(err).Str("email_id", req.EmailID).Msg("submit email failed")
				respondError(w, http.StatusInternalServerError, "failed to start delivery")
			}
			return
		}

		respondJSON(w, http.StatusAccepted, viewOf(inst))
	}
}

// GetEmailHandler handles GET /emails/{emailId}: returns the workflow state.
func GetEmailHandler(svc *workflow.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		emailID := chi.URLParam(r, "emailId")

		inst, err := svc.Get(r.Context(), emailID)
		if err != nil {
			if errors.Is(err, workflow.ErrInstanceNotFound) {
				respondError(w, http.StatusNotFound, "email not found")
				return
			}
			log := logger.FromContext(r.Context())
			log.Error().Err(err).Str("email_id", emailID).Msg("get email failed")
			respondError(w, http.StatusInternalServerError, "failed to load delivery")
			return
		}

		respondJSON(w, http.StatusOK, viewOf(inst))
	}
}

// ApproveEmailHandler handles POST /emails/{emailId}/approve.
func ApproveEmailHandler(svc *workflow.Service) http.HandlerFunc {
	return decisionHandler(func(r *http.Request, emailID string, _ decisionRequest) error {
		return svc.Approve(r.Context(), emailID)
	})
}

// RejectEmailHandler handles POST /emails/{emailId}/reject.
func RejectEmailHandler(svc *workflow.Service) http.HandlerFunc {
	return decisionHandler(func(r *http.Request, emailID string, req decisionRequest) error {
		return svc.Reject(r.Context(), emailID, req.Reason)
	})
}

// CancelEmailHandler handles POST /emails/{emailId}/cancel.
func CancelEmailHandler(svc *workflow.Service) http.HandlerFunc {
	return decisionHandler(func(r *http.Request, emailID string, req decisionRequest) error {
		return svc.Cancel(r.Context(), emailID, req.Reason)
	})
}

// decisionHandler factors the shared shape of approve/reject/cancel.
func decisionHandler(apply func(r *http.Request, emailID string, req decisionRequest) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		emailID := chi.URLParam(r, "emailId")

		var req decisionRequest
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}

		if err := apply(r, emailID, req); err != nil {
			switch {
			case errors.Is(err, workflow.ErrInstanceNotFound):
				respondError(w, http.StatusNotFound, "email not found")
			case errors.Is(err, workflow.ErrTerminal):
				respondError(w, http.StatusConflict, err.Error())
			default:
				log := logger.FromContext(r.Context())
				log.Error().Err(err).Str("email_id", emailID).Msg("signal failed")
				respondError(w, http.StatusInternalServerError, "failed to signal delivery")
			}
			return
		}

		respondJSON(w, http.StatusAccepted, map[string]string{"emailId": emailID, "status": "accepted"})
	}
}
