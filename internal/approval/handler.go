package approval

import (
	"net/http"
	"time"

	"orcazap/platform/httpkit"
	"orcazap/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles approval HTTP requests.
type Handler struct {
	service *Service
	val     *validator.Validator
}

// NewHandler creates a new approval handler.
func NewHandler(service *Service, val *validator.Validator) *Handler {
	return &Handler{service: service, val: val}
}

// PendingApprovalResponse is one entry in the review queue.
type PendingApprovalResponse struct {
	ID             uuid.UUID `json:"id"`
	QuoteID        uuid.UUID `json:"quoteId"`
	ConversationID uuid.UUID `json:"conversationId"`
	ContactName    string    `json:"contactName"`
	ContactPhone   string    `json:"contactPhone"`
	Total          string    `json:"total"`
	MarginPct      string    `json:"marginPct"`
	Reason         string    `json:"reason"`
	CreatedAt      string    `json:"createdAt"`
}

// ApprovalResponse is returned after a decision.
type ApprovalResponse struct {
	ID         uuid.UUID `json:"id"`
	QuoteID    uuid.UUID `json:"quoteId"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason"`
	ResolvedAt string    `json:"resolvedAt,omitempty"`
}

// RejectRequest is the request body for rejecting a quote.
type RejectRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// HandleListPending lists quotes awaiting review.
// GET /api/v1/approvals/pending
func (h *Handler) HandleListPending(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	items, err := h.service.ListPending(c.Request.Context(), identity.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}

	resp := make([]PendingApprovalResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, PendingApprovalResponse{
			ID:             item.ID,
			QuoteID:        item.QuoteID,
			ConversationID: item.ConversationID,
			ContactName:    item.ContactName,
			ContactPhone:   item.ContactPhone,
			Total:          item.Total.StringFixed(2),
			MarginPct:      item.MarginPct.String(),
			Reason:         item.Reason,
			CreatedAt:      item.CreatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"approvals": resp})
}

// HandleApprove releases a held quote to the customer.
// POST /api/v1/approvals/:approvalId/approve
func (h *Handler) HandleApprove(c *gin.Context) {
	identity, approvalID, ok := h.identityAndID(c)
	if !ok {
		return
	}

	approved, err := h.service.Approve(c.Request.Context(), identity.TenantID(), approvalID, identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	c.JSON(http.StatusOK, toApprovalResponse(approved))
}

// HandleReject declines a held quote.
// POST /api/v1/approvals/:approvalId/reject
func (h *Handler) HandleReject(c *gin.Context) {
	identity, approvalID, ok := h.identityAndID(c)
	if !ok {
		return
	}

	var req RejectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
		if err := h.val.Struct(req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
			return
		}
	}

	rejected, err := h.service.Reject(c.Request.Context(), identity.TenantID(), approvalID, identity.UserID(), req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}
	c.JSON(http.StatusOK, toApprovalResponse(rejected))
}

func (h *Handler) identityAndID(c *gin.Context) (httpkit.Identity, uuid.UUID, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return nil, uuid.Nil, false
	}
	approvalID, err := uuid.Parse(c.Param("approvalId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid approval ID", nil)
		return nil, uuid.Nil, false
	}
	return identity, approvalID, true
}

func toApprovalResponse(a *Approval) ApprovalResponse {
	resp := ApprovalResponse{
		ID:      a.ID,
		QuoteID: a.QuoteID,
		Status:  string(a.Status),
		Reason:  a.Reason,
	}
	if a.ApprovedAt != nil {
		resp.ResolvedAt = a.ApprovedAt.Format(time.RFC3339)
	}
	return resp
}
