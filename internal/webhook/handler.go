package webhook

import (
	"net/http"

	"orcazap/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Handler handles webhook HTTP requests.
type Handler struct {
	service *Service
}

// NewHandler creates a new webhook handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleVerify answers the Cloud API subscription handshake.
// GET /api/v1/webhook/whatsapp
func (h *Handler) HandleVerify(c *gin.Context) {
	challenge, err := h.service.VerifyChallenge(
		c.Request.Context(),
		c.Query("hub.mode"),
		c.Query("hub.verify_token"),
		c.Query("hub.challenge"),
	)
	if httpkit.HandleError(c, err) {
		return
	}
	c.String(http.StatusOK, challenge)
}

// HandleNotification ingests a webhook notification. The provider always
// gets a 200 once the signature checks out; per-message failures are logged
// and retried through the task queue, not through provider redelivery.
// POST /api/v1/webhook/whatsapp
func (h *Handler) HandleNotification(c *gin.Context) {
	body, ok := c.Get(bodyContextKey)
	if !ok {
		httpkit.Error(c, http.StatusInternalServerError, "missing verified payload", nil)
		return
	}

	h.service.ProcessNotification(c.Request.Context(), body.([]byte))
	c.Status(http.StatusOK)
}
