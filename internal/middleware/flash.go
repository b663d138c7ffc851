package middleware

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/itdesk-io/itdesk/internal/models"
)

const flashCookie = "flash"

type flash struct {
	Level   models.FlashLevel `json:"level"`
	Message string            `json:"message"`
}

// SetFlash queues a one-time message for the page the client is redirected to.
func SetFlash(c *gin.Context, o *models.Outcome) {
	if o == nil || o.Message == "" {
		return
	}
	raw, err := json.Marshal(flash{Level: o.Level, Message: o.Message})
	if err != nil {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookie, base64.RawURLEncoding.EncodeToString(raw), 60, "/", "", c.Request.TLS != nil, true)
}

// TakeFlash reads and clears the pending message. ok is false when there is none.
func TakeFlash(c *gin.Context) (level models.FlashLevel, message string, ok bool) {
	value, err := c.Cookie(flashCookie)
	if err != nil || value == "" {
		return "", "", false
	}
	c.SetCookie(flashCookie, "", -1, "/", "", c.Request.TLS != nil, true)

	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return "", "", false
	}
	var f flash
	if err := json.Unmarshal(raw, &f); err != nil || f.Message == "" {
		return "", "", false
	}
	return f.Level, f.Message, true
}
