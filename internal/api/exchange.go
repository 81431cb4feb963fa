package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"exchange-service/internal/models"
	"exchange-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// returnBody is the payload of POST /transactions/:id/return
type returnBody struct {
	ReturnCondition      models.ReturnCondition `json:"return_condition"`
	ReturnNotes          string                 `json:"return_notes" binding:"max=2000"`
	ReturnDamagePhotoURL string                 `json:"return_damage_photo_url" binding:"omitempty,url"`
}

// cancelBody is the optional payload of POST /transactions/:id/cancel
type cancelBody struct {
	Reason string `json:"reason" binding:"max=500"`
}

// idParam returns the :id path parameter if it is a UUID
func idParam(c *gin.Context, what string) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(c, http.StatusBadRequest, fmt.Sprintf("Invalid %s ID", what))
		return "", false
	}
	return id, true
}

// listTransactions returns the caller's transactions, served from the view
// cache while the dashboard version is unchanged
func (h *Handler) listTransactions(c *gin.Context) {
	actor := actorFrom(c)
	ctx := c.Request.Context()
	path := service.DashboardPath(actor.TenantSlug)

	if data, ok := h.views.Load(ctx, path, actor.UserID, "transactions"); ok {
		c.Data(http.StatusOK, "application/json; charset=utf-8", data)
		return
	}

	items, err := h.exchange.ListMyTransactions(ctx, actor)
	if err != nil {
		h.logger.Error("Failed to list transactions", zap.String("user_id", actor.UserID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to load transactions")
		return
	}

	h.writeCached(c, path, actor.UserID, "transactions", &service.Result{Success: true, Data: items})
}

// listCompletedTransactions returns a page of completed history
func (h *Handler) listCompletedTransactions(c *gin.Context) {
	actor := actorFrom(c)
	ctx := c.Request.Context()

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "Invalid offset")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "Invalid limit")
		return
	}

	path := service.DashboardPath(actor.TenantSlug)
	variant := fmt.Sprintf("completed:%d:%d", offset, limit)
	if data, ok := h.views.Load(ctx, path, actor.UserID, variant); ok {
		c.Data(http.StatusOK, "application/json; charset=utf-8", data)
		return
	}

	page, err := h.exchange.ListCompletedTransactions(ctx, actor, offset, limit)
	if err != nil {
		h.logger.Error("Failed to list completed transactions", zap.String("user_id", actor.UserID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to load transactions")
		return
	}

	h.writeCached(c, path, actor.UserID, variant, &service.Result{Success: true, Data: page})
}

// getTransaction returns one transaction the caller is a party to
func (h *Handler) getTransaction(c *gin.Context) {
	id, ok := idParam(c, "transaction")
	if !ok {
		return
	}
	writeResult(c, h.exchange.GetTransaction(c.Request.Context(), actorFrom(c), id))
}

// markPickedUp handles pickup confirmation by either party
func (h *Handler) markPickedUp(c *gin.Context) {
	id, ok := idParam(c, "transaction")
	if !ok {
		return
	}
	actor := actorFrom(c)
	res := h.exchange.MarkItemPickedUp(c.Request.Context(), actor, id)
	h.afterMutation(c, actor, res, false)
	writeResult(c, res)
}

// markReturned handles the lender's return confirmation
func (h *Handler) markReturned(c *gin.Context) {
	id, ok := idParam(c, "transaction")
	if !ok {
		return
	}

	var body returnBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			writeError(c, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	actor := actorFrom(c)
	res := h.exchange.MarkItemReturned(c.Request.Context(), actor, id, service.ReturnRequest{
		Condition:      body.ReturnCondition,
		Notes:          body.ReturnNotes,
		DamagePhotoURL: body.ReturnDamagePhotoURL,
	})
	h.afterMutation(c, actor, res, true)
	writeResult(c, res)
}

// markCompleted handles the lender's completion of a returned transaction
func (h *Handler) markCompleted(c *gin.Context) {
	id, ok := idParam(c, "transaction")
	if !ok {
		return
	}
	actor := actorFrom(c)
	res := h.exchange.MarkTransactionCompleted(c.Request.Context(), actor, id)
	h.afterMutation(c, actor, res, true)
	writeResult(c, res)
}

// cancelTransaction handles cancellation before pickup
func (h *Handler) cancelTransaction(c *gin.Context) {
	id, ok := idParam(c, "transaction")
	if !ok {
		return
	}

	var body cancelBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			writeError(c, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	actor := actorFrom(c)
	res := h.exchange.CancelTransaction(c.Request.Context(), actor, id, body.Reason)
	h.afterMutation(c, actor, res, true)
	writeResult(c, res)
}

// getPendingRequest returns the caller's open request on a listing
func (h *Handler) getPendingRequest(c *gin.Context) {
	id, ok := idParam(c, "listing")
	if !ok {
		return
	}
	actor := actorFrom(c)

	tx, err := h.exchange.GetUserPendingRequest(c.Request.Context(), actor, id)
	if err != nil {
		h.logger.Error("Failed to get pending request", zap.String("listing_id", id), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to load pending request")
		return
	}
	c.JSON(http.StatusOK, &service.Result{Success: true, Data: tx})
}

// getAvailability returns the remaining capacity of a listing
func (h *Handler) getAvailability(c *gin.Context) {
	id, ok := idParam(c, "listing")
	if !ok {
		return
	}

	availability, err := h.exchange.ListingAvailability(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		kind := service.KindOf(err)
		if kind == service.KindNotFound {
			writeError(c, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("Failed to get availability", zap.String("listing_id", id), zap.Error(err))
		writeError(c, statusFor(kind), "Failed to load availability")
		return
	}
	c.JSON(http.StatusOK, &service.Result{Success: true, Data: availability})
}

// afterMutation invalidates the views a successful transition made stale
func (h *Handler) afterMutation(c *gin.Context, actor service.Actor, res *service.Result, includeExchange bool) {
	if !res.Success || actor.TenantSlug == "" {
		return
	}
	h.views.Invalidate(c.Request.Context(), service.MutationPaths(actor.TenantSlug, includeExchange)...)
}

func (h *Handler) writeCached(c *gin.Context, path, userID, variant string, res *service.Result) {
	data, err := json.Marshal(res)
	if err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to encode response")
		return
	}
	h.views.Store(c.Request.Context(), path, userID, variant, data)
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}
