package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/sid-bonds/internal/http/middleware"
	"github.com/nurpe/sid-bonds/internal/model"
	"github.com/nurpe/sid-bonds/internal/service"
)

type contractResponse struct {
	ID                uuid.UUID            `json:"id"`
	Name              string               `json:"name"`
	ParentID          *uuid.UUID           `json:"parent_id"`
	ParentPath        string               `json:"parent_path"`
	ChildIDs          []uuid.UUID          `json:"child_ids"`
	AmountUntaxed     decimal.Decimal      `json:"amount_untaxed"`
	AmountTotal       decimal.Decimal      `json:"amount_total"`
	EffectiveCustomer *uuid.UUID           `json:"effective_customer_id"`
	ConfirmedOrderIDs []uuid.UUID          `json:"confirmed_order_ids"`
	Counts            model.ContractCounts `json:"counts"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

func toContractResponse(v model.ContractView) contractResponse {
	return contractResponse{
		ID:                v.ID,
		Name:              v.Name,
		ParentID:          v.ParentID,
		ParentPath:        v.ParentPath,
		ChildIDs:          v.ChildIDs,
		AmountUntaxed:     v.AmountUntaxed,
		AmountTotal:       v.AmountTotal,
		EffectiveCustomer: v.EffectiveCustomer,
		ConfirmedOrderIDs: v.ConfirmedOrderIDs,
		Counts:            v.Counts,
		UpdatedAt:         v.UpdatedAt,
	}
}

type createContractRequest struct {
	Name          string          `json:"name" binding:"required"`
	ParentID      *string         `json:"parent_id"`
	ChildIDs      []string        `json:"child_ids"`
	AmountUntaxed decimal.Decimal `json:"amount_untaxed"`
	AmountTotal   decimal.Decimal `json:"amount_total"`
}

func (h *Handler) createContract(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req createContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	parentID, err := parseOptionalID(req.ParentID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid parent_id"})
		return
	}
	childIDs, err := parseIDs(req.ChildIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid child_ids"})
		return
	}

	view, err := h.contracts.Create(c.Request.Context(), service.CreateContractInput{
		Name:          req.Name,
		ParentID:      parentID,
		ChildIDs:      childIDs,
		AmountUntaxed: req.AmountUntaxed,
		AmountTotal:   req.AmountTotal,
		Principal:     principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": toContractResponse(*view)})
}

func (h *Handler) getContract(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	view, err := h.contracts.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toContractResponse(*view)})
}

type patchContractRequest struct {
	Name          *string          `json:"name"`
	ParentID      json.RawMessage  `json:"parent_id"`
	ChildIDs      *[]string        `json:"child_ids"`
	AmountUntaxed *decimal.Decimal `json:"amount_untaxed"`
	AmountTotal   *decimal.Decimal `json:"amount_total"`
}

func (h *Handler) updateContract(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req patchContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	patch := model.ContractPatch{
		Name:          req.Name,
		AmountUntaxed: req.AmountUntaxed,
		AmountTotal:   req.AmountTotal,
	}
	parentID, err := parseNullableID(req.ParentID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid parent_id"})
		return
	}
	patch.ParentID = parentID
	if req.ChildIDs != nil {
		childIDs, err := parseIDs(*req.ChildIDs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid child_ids"})
			return
		}
		patch.ChildIDs = &childIDs
	}

	view, err := h.contracts.Update(c.Request.Context(), id, patch, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toContractResponse(*view)})
}

func (h *Handler) contractOrdersAction(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	action, err := h.contracts.OrdersAction(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": action})
}

type upsertOrderRequest struct {
	Name          string          `json:"name" binding:"required"`
	ContractID    *string         `json:"contract_id"`
	CustomerID    *string         `json:"customer_id"`
	State         string          `json:"state" binding:"required"`
	AmountUntaxed decimal.Decimal `json:"amount_untaxed"`
	DateOrder     *string         `json:"date_order"`
}

type reviewResponse struct {
	GuaranteeID uuid.UUID `json:"guarantee_id"`
	varianceResponse
}

func (h *Handler) upsertOrder(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req upsertOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input := service.UpsertOrderInput{
		ID:            id,
		Name:          req.Name,
		State:         model.OrderState(strings.ToLower(strings.TrimSpace(req.State))),
		AmountUntaxed: req.AmountUntaxed,
		Principal:     principal,
	}
	var err error
	if input.ContractID, err = parseOptionalID(req.ContractID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract_id"})
		return
	}
	if input.CustomerID, err = parseOptionalID(req.CustomerID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer_id"})
		return
	}
	dateOrder, err := parseOptionalDate(req.DateOrder)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date_order"})
		return
	}
	if dateOrder != nil {
		input.DateOrder = *dateOrder
	}

	result, err := h.orders.Upsert(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err)
		return
	}

	reviewed := make([]reviewResponse, 0, len(result.Reviewed))
	for guaranteeID, outcome := range result.Reviewed {
		reviewed = append(reviewed, reviewResponse{
			GuaranteeID:      guaranteeID,
			varianceResponse: toVarianceResponse(outcome),
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": result.Order, "reviewed": reviewed})
}
