package purchaserequest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/frahmantamala/procure-to-pay/internal"
	"github.com/frahmantamala/procure-to-pay/internal/transport"
	"github.com/shopspring/decimal"
)

const defaultMaxUploadBytes = 10 << 20

type Handler struct {
	transport.BaseHandler
	Service        ServiceAPI
	MaxUploadBytes int64
}

func NewHandler(service ServiceAPI, maxUploadBytes int64, logger *slog.Logger) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{
		BaseHandler:    transport.BaseHandler{Logger: logger},
		Service:        service,
		MaxUploadBytes: maxUploadBytes,
	}
}

// CreateRequest handles POST /api/v1/requests. The body is either JSON or a
// multipart form with an optional "proforma" file.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok {
		h.Logger.Error("CreateRequest: actor not found in context")
		h.HandleError(w, internal.ErrInvalidToken)
		return
	}

	var (
		dto      CreateRequestDTO
		proforma *Upload
	)
	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
		if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
			h.Logger.Warn("CreateRequest: failed to parse multipart form", "error", err)
			h.HandleError(w, internal.NewValidationError("invalid multipart form", internal.ErrCodeValidationFailed))
			return
		}
		defer r.MultipartForm.RemoveAll()

		parsed, appErr := createDTOFromForm(r)
		if appErr != nil {
			h.HandleError(w, appErr)
			return
		}
		dto = parsed

		if file, header, err := r.FormFile("proforma"); err == nil {
			defer file.Close()
			proforma = &Upload{Filename: header.Filename, Content: file}
		} else if !errors.Is(err, http.ErrMissingFile) {
			h.Logger.Warn("CreateRequest: failed to read proforma", "error", err)
			h.HandleError(w, internal.NewValidationError("invalid proforma upload", internal.ErrCodeValidationFailed))
			return
		}
	} else if appErr := h.DecodeJSON(r, &dto); appErr != nil {
		h.Logger.Warn("CreateRequest: failed to parse request body", "error", appErr.GetDetailedMessage())
		h.HandleError(w, appErr)
		return
	}

	pr, err := h.Service.Create(r.Context(), actor, dto, proforma)
	if err != nil {
		h.Logger.Error("CreateRequest: service error", "error", err, "actor_id", actor.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, pr)
}

// ListRequests handles GET /api/v1/requests
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok {
		h.HandleError(w, internal.ErrInvalidToken)
		return
	}

	requests, err := h.Service.List(r.Context(), actor)
	if err != nil {
		h.Logger.Error("ListRequests: service error", "error", err, "actor_id", actor.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"requests": requests,
		"count":    len(requests),
	})
}

// GetRequest handles GET /api/v1/requests/{id}
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok {
		h.HandleError(w, internal.ErrInvalidToken)
		return
	}
	id, appErr := h.IDParam(r, "id")
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	pr, err := h.Service.Get(r.Context(), id, actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, pr)
}

// UpdateRequest handles PATCH /api/v1/requests/{id}
func (h *Handler) UpdateRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok {
		h.HandleError(w, internal.ErrInvalidToken)
		return
	}
	id, appErr := h.IDParam(r, "id")
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	var dto UpdateRequestDTO
	if appErr := h.DecodeJSON(r, &dto); appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	pr, err := h.Service.Update(r.Context(), id, actor, dto)
	if err != nil {
		h.Logger.Warn("UpdateRequest: service error", "error", err, "request_id", id, "actor_id", actor.ID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, pr)
}

// DeleteRequest handles DELETE /api/v1/requests/{id}
func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok {
		h.HandleError(w, internal.ErrInvalidToken)
		return
	}
	id, appErr := h.IDParam(r, "id")
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	if err := h.Service.Delete(r.Context(), id, actor); err != nil {
		h.Logger.Warn("DeleteRequest: service error", "error", err, "request_id", id, "actor_id", actor.ID)
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApproveRequest handles PATCH /api/v1/requests/{id}/approve
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok {
		h.HandleError(w, internal.ErrInvalidToken)
		return
	}
	id, appErr := h.IDParam(r, "id")
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	pr, err := h.Service.Approve(r.Context(), id, actor)
	if err != nil {
		h.Logger.Warn("ApproveRequest: service error", "error", err, "request_id", id, "actor_id", actor.ID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, pr)
}

// RejectRequest handles PATCH /api/v1/requests/{id}/reject
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok {
		h.HandleError(w, internal.ErrInvalidToken)
		return
	}
	id, appErr := h.IDParam(r, "id")
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	var dto RejectRequestDTO
	if r.ContentLength != 0 {
		if appErr := h.DecodeJSON(r, &dto); appErr != nil {
			h.HandleError(w, appErr)
			return
		}
	}

	pr, err := h.Service.Reject(r.Context(), id, actor, dto.Reason)
	if err != nil {
		h.Logger.Warn("RejectRequest: service error", "error", err, "request_id", id, "actor_id", actor.ID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, pr)
}

// SubmitReceipt handles POST /api/v1/requests/{id}/submit-receipt with a
// multipart "receipt" file.
func (h *Handler) SubmitReceipt(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok {
		h.HandleError(w, internal.ErrInvalidToken)
		return
	}
	id, appErr := h.IDParam(r, "id")
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	var receipt *Upload
	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
		if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
			h.Logger.Warn("SubmitReceipt: failed to parse multipart form", "error", err)
			h.HandleError(w, internal.NewValidationError("invalid multipart form", internal.ErrCodeValidationFailed))
			return
		}
		defer r.MultipartForm.RemoveAll()

		if file, header, err := r.FormFile("receipt"); err == nil {
			defer file.Close()
			receipt = &Upload{Filename: header.Filename, Content: file}
		}
	}

	result, err := h.Service.SubmitReceipt(r.Context(), id, actor, receipt)
	if err != nil {
		h.Logger.Warn("SubmitReceipt: service error", "error", err, "request_id", id, "actor_id", actor.ID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

func createDTOFromForm(r *http.Request) (CreateRequestDTO, *internal.AppError) {
	dto := CreateRequestDTO{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
	}

	if raw := strings.TrimSpace(r.FormValue("amount")); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return dto, internal.NewValidationFieldError("amount", "amount must be a number", internal.ErrCodeInvalidAmount)
		}
		dto.Amount = amount
	}

	if raw := strings.TrimSpace(r.FormValue("items")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &dto.Items); err != nil {
			return dto, internal.NewValidationFieldError("items", "items must be a JSON array", internal.ErrCodeInvalidItem)
		}
	}
	return dto, nil
}
