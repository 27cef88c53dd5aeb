package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"orcazap/platform/httpkit"
	"orcazap/platform/logger"

	"github.com/gin-gonic/gin"
)

const maxNotificationBytes = 1 << 20

// bodyContextKey carries the verified raw body to the handler so it is read
// exactly once.
const bodyContextKey = "webhook.rawBody"

// SignatureMiddleware verifies the X-Hub-Signature-256 header: an HMAC-SHA256
// of the raw body keyed with the app secret. Requests that fail verification
// are rejected before any parsing.
func SignatureMiddleware(appSecret string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxNotificationBytes+1))
		if err != nil || len(body) > maxNotificationBytes {
			httpkit.Error(c, http.StatusRequestEntityTooLarge, "payload too large", nil)
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		header := c.GetHeader("X-Hub-Signature-256")
		provided, ok := strings.CutPrefix(header, "sha256=")
		if !ok {
			log.Warn("webhook signature header missing", "client_ip", c.ClientIP())
			httpkit.Error(c, http.StatusUnauthorized, "missing signature", nil)
			c.Abort()
			return
		}

		mac := hmac.New(sha256.New, []byte(appSecret))
		mac.Write(body)
		expected := hex.EncodeToString(mac.Sum(nil))

		if !hmac.Equal([]byte(expected), []byte(provided)) {
			log.Warn("webhook signature mismatch", "client_ip", c.ClientIP())
			httpkit.Error(c, http.StatusUnauthorized, "invalid signature", nil)
			c.Abort()
			return
		}

		c.Set(bodyContextKey, body)
		c.Next()
	}
}
