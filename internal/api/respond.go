package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/itdesk-io/itdesk/internal/auth"
	"github.com/itdesk-io/itdesk/internal/database"
	"github.com/itdesk-io/itdesk/internal/middleware"
	"github.com/itdesk-io/itdesk/internal/models"
	"github.com/itdesk-io/itdesk/internal/service"
	"github.com/itdesk-io/itdesk/internal/storage"
)

// respondOutcome finishes an action: a 303 with a flash for browsers, the outcome as
// JSON for API clients. data, when non-nil, is added to the JSON body.
func (s *Server) respondOutcome(c *gin.Context, o *models.Outcome, data gin.H) {
	s.deps.Metrics.Outcome(string(o.Level))
	if middleware.WantsJSON(c) {
		status := http.StatusOK
		if o.Level == models.FlashError {
			status = http.StatusForbidden
		}
		body := gin.H{
			"success":  o.Success(),
			"level":    o.Level,
			"message":  o.Message,
			"redirect": o.Redirect,
		}
		for k, v := range data {
			body[k] = v
		}
		c.JSON(status, body)
		return
	}
	middleware.SetFlash(c, o)
	c.Redirect(http.StatusSeeOther, o.Redirect)
}

// respondError maps service errors onto status codes. input is echoed back with
// validation and conflict errors so a form can be refilled.
func (s *Server) respondError(c *gin.Context, err error, input any) {
	var verr *models.ValidationError
	var cerr *models.ConflictError
	var uerr *storage.UploadError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Please correct the errors below.",
			"fields":  verr.Fields,
			"input":   input,
		})
	case errors.As(err, &cerr):
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error":   cerr.Message,
			"fields":  gin.H{cerr.Field: cerr.Message},
			"input":   input,
		})
	case errors.As(err, &uerr):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   uerr.Message,
			"fields":  gin.H{"attachments": uerr.Message},
		})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Not found"})
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authentication required"})
	case database.IsConnectionError(err):
		log.Printf("Database unavailable on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Service temporarily unavailable"})
	default:
		log.Printf("Error handling %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
	}
}

// badForm reports a body that could not be bound at all.
func badForm(err error) error {
	if verr, ok := service.FieldErrors(err); ok {
		return verr
	}
	log.Printf("Malformed form submission: %v", err)
	verr := models.NewValidationError()
	verr.Add("form", "Invalid form submission.")
	return verr
}

// pathID parses the :id route parameter, answering 404 when it is not a positive integer.
func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Not found"})
		return 0, false
	}
	return uint(id), true
}

// flashBody adds a pending flash message to a page's JSON body.
func flashBody(c *gin.Context, body gin.H) gin.H {
	if level, msg, ok := middleware.TakeFlash(c); ok {
		body["flash"] = gin.H{"level": level, "message": msg}
	}
	return body
}
