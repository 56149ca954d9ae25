package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/sid-bonds/internal/http/middleware"
	"github.com/nurpe/sid-bonds/internal/model"
	"github.com/nurpe/sid-bonds/internal/service"
)

type guaranteeResponse struct {
	ID          uuid.UUID            `json:"id"`
	Name        string               `json:"name"`
	ExternalRef string               `json:"external_ref,omitempty"`
	CustomerID  *uuid.UUID           `json:"customer_id"`
	JournalID   *uuid.UUID           `json:"journal_id"`
	Currency    string               `json:"currency"`
	Amount      decimal.Decimal      `json:"amount"`
	BaseAmount  decimal.Decimal      `json:"base_amount"`
	Origin      string               `json:"origin"`
	IssueDate   *time.Time           `json:"issue_date"`
	DueDate     *time.Time           `json:"due_date"`
	Digital     bool                 `json:"digital"`
	Reviewed    bool                 `json:"reviewed"`
	Description string               `json:"description,omitempty"`
	Type        model.GuaranteeType  `json:"type"`
	State       model.GuaranteeState `json:"state"`
	HasDocument bool                 `json:"has_document"`
	ContractIDs []uuid.UUID          `json:"contract_ids"`
	CreatedBy   uuid.UUID            `json:"created_by"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

func toGuaranteeResponse(v model.GuaranteeView) guaranteeResponse {
	contractIDs := v.ContractIDs
	if contractIDs == nil {
		contractIDs = []uuid.UUID{}
	}
	return guaranteeResponse{
		ID:          v.ID,
		Name:        v.Name,
		ExternalRef: v.ExternalRef,
		CustomerID:  v.CustomerID,
		JournalID:   v.JournalID,
		Currency:    v.Currency,
		Amount:      v.Amount,
		BaseAmount:  v.BaseAmount,
		Origin:      v.Origin,
		IssueDate:   v.IssueDate,
		DueDate:     v.DueDate,
		Digital:     v.Digital,
		Reviewed:    v.Reviewed,
		Description: v.Description,
		Type:        v.Type,
		State:       v.State,
		HasDocument: v.HasDocument,
		ContractIDs: contractIDs,
		CreatedBy:   v.CreatedBy,
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   v.UpdatedAt,
	}
}

type varianceResponse struct {
	Percent     decimal.Decimal `json:"variance_pct"`
	NotePosted  bool            `json:"note_posted"`
	TaskCreated bool            `json:"task_created"`
}

func toVarianceResponse(o service.VarianceOutcome) varianceResponse {
	return varianceResponse{Percent: o.Percent, NotePosted: o.NotePosted, TaskCreated: o.TaskCreated}
}

type createGuaranteeRequest struct {
	Name        string          `json:"name"`
	ExternalRef string          `json:"external_ref"`
	CustomerID  *string         `json:"customer_id"`
	JournalID   *string         `json:"journal_id"`
	Currency    string          `json:"currency"`
	Amount      decimal.Decimal `json:"amount"`
	IssueDate   *string         `json:"issue_date"`
	DueDate     *string         `json:"due_date"`
	Digital     bool            `json:"digital"`
	Reviewed    bool            `json:"reviewed"`
	Description string          `json:"description"`
	Type        string          `json:"type"`
	ContractIDs []string        `json:"contract_ids"`
}

func (h *Handler) createGuarantee(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req createGuaranteeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := service.CreateGuaranteeInput{
		Name:        req.Name,
		ExternalRef: req.ExternalRef,
		Currency:    req.Currency,
		Amount:      req.Amount,
		Digital:     req.Digital,
		Reviewed:    req.Reviewed,
		Description: req.Description,
		Type:        model.GuaranteeType(strings.TrimSpace(req.Type)),
		Principal:   principal,
	}
	var err error
	if input.CustomerID, err = parseOptionalID(req.CustomerID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer_id"})
		return
	}
	if input.JournalID, err = parseOptionalID(req.JournalID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid journal_id"})
		return
	}
	if input.IssueDate, err = parseOptionalDate(req.IssueDate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid issue_date"})
		return
	}
	if input.DueDate, err = parseOptionalDate(req.DueDate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid due_date"})
		return
	}
	if input.ContractIDs, err = parseIDs(req.ContractIDs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract_ids"})
		return
	}

	view, err := h.guarantees.Create(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": toGuaranteeResponse(*view)})
}

func (h *Handler) getGuarantee(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	view, err := h.guarantees.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toGuaranteeResponse(*view)})
}

func (h *Handler) listGuarantees(c *gin.Context) {
	filter, err := parseGuaranteeFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	views, err := h.guarantees.List(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	items := make([]guaranteeResponse, 0, len(views))
	for _, v := range views {
		items = append(items, toGuaranteeResponse(v))
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

type patchGuaranteeRequest struct {
	ExternalRef *string          `json:"external_ref"`
	CustomerID  json.RawMessage  `json:"customer_id"`
	JournalID   json.RawMessage  `json:"journal_id"`
	Currency    *string          `json:"currency"`
	Amount      *decimal.Decimal `json:"amount"`
	IssueDate   json.RawMessage  `json:"issue_date"`
	DueDate     json.RawMessage  `json:"due_date"`
	Digital     *bool            `json:"digital"`
	Reviewed    *bool            `json:"reviewed"`
	Description *string          `json:"description"`
	Type        *string          `json:"type"`
	ContractIDs *[]string        `json:"contract_ids"`
}

func (req patchGuaranteeRequest) toPatch() (model.GuaranteePatch, error) {
	patch := model.GuaranteePatch{
		ExternalRef: req.ExternalRef,
		Currency:    req.Currency,
		Amount:      req.Amount,
		Digital:     req.Digital,
		Reviewed:    req.Reviewed,
		Description: req.Description,
	}
	if req.Type != nil {
		t := model.GuaranteeType(strings.TrimSpace(*req.Type))
		patch.Type = &t
	}
	var err error
	if patch.CustomerID, err = parseNullableID(req.CustomerID); err != nil {
		return patch, err
	}
	if patch.JournalID, err = parseNullableID(req.JournalID); err != nil {
		return patch, err
	}
	if patch.IssueDate, err = parseNullableDate(req.IssueDate); err != nil {
		return patch, err
	}
	if patch.DueDate, err = parseNullableDate(req.DueDate); err != nil {
		return patch, err
	}
	if req.ContractIDs != nil {
		ids, err := parseIDs(*req.ContractIDs)
		if err != nil {
			return patch, err
		}
		patch.ContractIDs = &ids
	}
	return patch, nil
}

func (h *Handler) updateGuarantee(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req patchGuaranteeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid patch"})
		return
	}

	result, err := h.guarantees.Update(c.Request.Context(), id, patch, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":     toGuaranteeResponse(result.Guarantee),
		"variance": toVarianceResponse(result.Variance),
	})
}

type idsRequest struct {
	IDs       []string `json:"ids" binding:"required"`
	BankState string   `json:"bank_state"`
}

type stateResponse struct {
	ID    uuid.UUID            `json:"id"`
	Name  string               `json:"name"`
	State model.GuaranteeState `json:"state"`
}

func (h *Handler) runGuaranteeAction(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req idsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ids, err := parseIDs(req.IDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ids"})
		return
	}

	action := service.Action(strings.ToLower(strings.TrimSpace(c.Param("action"))))
	bankState := model.GuaranteeState(strings.TrimSpace(req.BankState))
	updated, err := h.guarantees.RunAction(c.Request.Context(), ids, action, bankState, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}

	items := make([]stateResponse, 0, len(updated))
	for _, g := range updated {
		items = append(items, stateResponse{ID: g.ID, Name: g.Name, State: g.State})
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (h *Handler) deleteGuarantees(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req idsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ids, err := parseIDs(req.IDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ids"})
		return
	}

	if err := h.guarantees.Delete(c.Request.Context(), ids, principal); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) guaranteeOrdersAction(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	action, err := h.guarantees.LinkedOrdersAction(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": action})
}

// maxUploadBody leaves room for the multipart envelope around the document.
const maxUploadBody = service.MaxDocumentSize + 1<<20

func (h *Handler) uploadDocument(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBody)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "document is too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file"})
		return
	}
	defer file.Close()
	// one byte past the cap so the service can reject oversized documents
	content, err := io.ReadAll(io.LimitReader(file, service.MaxDocumentSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file"})
		return
	}

	if err := h.guarantees.AttachDocument(c.Request.Context(), id, fileHeader.Filename, content, principal); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) downloadDocument(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	doc, err := h.guarantees.Document(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	sendFile(c, "application/pdf", doc.FileName, doc.Content)
}

func (h *Handler) summaryPDF(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	result, err := h.documents.SummaryPDF(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	sendFile(c, "application/pdf", result.FileName, result.Content)
}

func (h *Handler) exportGuarantees(c *gin.Context) {
	filter, err := parseGuaranteeFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.documents.ExportRegister(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	sendFile(c, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", result.FileName, result.Content)
}

func (h *Handler) listNotes(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	notes, err := h.activities.Notes(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	if notes == nil {
		notes = []model.Note{}
	}
	c.JSON(http.StatusOK, gin.H{"data": notes})
}

func (h *Handler) listActivities(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	openOnly, _ := strconv.ParseBool(c.DefaultQuery("open", "false"))
	activities, err := h.activities.Activities(c.Request.Context(), id, openOnly)
	if err != nil {
		h.handleError(c, err)
		return
	}
	if activities == nil {
		activities = []model.Activity{}
	}
	c.JSON(http.StatusOK, gin.H{"data": activities})
}

func (h *Handler) markActivityDone(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.activities.MarkDone(c.Request.Context(), id, principal); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func parseGuaranteeFilter(c *gin.Context) (model.GuaranteeFilter, error) {
	var filter model.GuaranteeFilter
	for _, raw := range c.QueryArray("state") {
		state := model.GuaranteeState(strings.TrimSpace(raw))
		if !state.Valid() {
			return filter, service.ErrInvalidInput
		}
		filter.States = append(filter.States, state)
	}
	if raw := c.Query("customer_id"); raw != "" {
		id, err := parseOptionalID(&raw)
		if err != nil {
			return filter, err
		}
		filter.CustomerID = id
	}
	if raw := c.Query("contract_id"); raw != "" {
		id, err := parseOptionalID(&raw)
		if err != nil {
			return filter, err
		}
		filter.ContractID = id
	}
	if raw := c.Query("due_before"); raw != "" {
		date, err := parseOptionalDate(&raw)
		if err != nil {
			return filter, err
		}
		filter.DueBefore = date
	}
	return filter, nil
}
