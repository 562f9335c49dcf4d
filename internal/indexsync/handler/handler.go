// Package handler provides the dead-letter admin HTTP handlers.
package handler

import (
	"context"
	"errors"
	"net/http"

	"searchahouse/internal/indexsync/repository"
	"searchahouse/internal/indexsync/transport"
	"searchahouse/platform/apperr"
	"searchahouse/platform/httpkit"
	"searchahouse/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest = "invalid request"
	defaultPageSize   = 50
)

// Store is the dead-letter persistence used by the handler.
type Store interface {
	List(ctx context.Context, p repository.ListParams) ([]repository.Record, int, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Record, error)
	RequestReplay(ctx context.Context, id uuid.UUID) (repository.Record, error)
}

// Handler serves the dead-letter admin API.
type Handler struct {
	store Store
	val   *validator.Validator
}

// New creates a dead-letter handler.
func New(store Store, val *validator.Validator) *Handler {
	return &Handler{store: store, val: val}
}

// List handles GET /api/v1/dead-letters.
func (h *Handler) List(c *gin.Context) {
	var req transport.ListDeadLettersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Check(req); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	if req.Size == 0 {
		req.Size = defaultPageSize
	}

	records, total, err := h.store.List(c.Request.Context(), repository.ListParams{
		Status:     repository.Status(req.Status),
		EntityType: req.EntityType,
		Limit:      req.Size,
		Offset:     req.Page * req.Size,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.DeadLetterResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, toResponse(rec))
	}
	httpkit.OK(c, transport.DeadLetterListResponse{Items: items, Total: total, Page: req.Page, Size: req.Size})
}

// Get handles GET /api/v1/dead-letters/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	rec, err := h.store.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, mapError(err)) {
		return
	}
	httpkit.OK(c, toResponse(rec))
}

// Replay handles POST /api/v1/dead-letters/:id/replay. The record is queued
// for the replayer, which re-enqueues the original payload.
func (h *Handler) Replay(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	rec, err := h.store.RequestReplay(c.Request.Context(), id)
	if httpkit.HandleError(c, mapError(err)) {
		return
	}
	httpkit.JSON(c, http.StatusAccepted, toResponse(rec))
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid dead letter id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperr.Wrap(apperr.KindNotFound, "dead letter not found", err)
	case errors.Is(err, repository.ErrNotReplayable):
		return apperr.Wrap(apperr.KindConflict, "dead letter is already queued or replayed", err)
	default:
		return err
	}
}

func toResponse(rec repository.Record) transport.DeadLetterResponse {
	return transport.DeadLetterResponse{
		ID:          rec.ID.String(),
		EntityType:  rec.EntityType,
		EntityID:    rec.EntityID,
		Operation:   rec.Operation,
		Version:     rec.Version,
		Reason:      rec.Reason,
		Error:       rec.Error,
		Attempts:    rec.Attempts,
		Status:      string(rec.Status),
		ReplayError: rec.ReplayError,
		Payload:     string(rec.Payload),
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
		ReplayedAt:  rec.ReplayedAt,
	}
}
