package server

import (
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/sparks/internal/ingest"
)

const maxWebhookBodyBytes = 1 << 20

type webhookResponse struct {
	OK     bool   `json:"ok"`
	Queued bool   `json:"queued"`
	RoomID string `json:"room_id"`
}

// Webhook accepts one provider event. Only an unparseable body or a spent
// channel budget is reported to the caller; raw store trouble is not.
func (s *Server) Webhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			AbortWithError(c, ErrPayloadTooLarge)
			return
		}
		AbortWithError(c, ingest.ErrInvalidJSON)
		return
	}

	res, err := s.ingest.Ingest(c.Request.Context(), body)
	if res.Channel != "" {
		c.Set("channel", res.Channel)
	}
	if res.RoomKey != "" {
		c.Set("room_key", res.RoomKey)
	}
	if err != nil {
		var limited *ingest.RateLimitedError
		if errors.As(err, &limited) {
			seconds := int(math.Ceil(limited.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(max(seconds, 1)))
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, webhookResponse{
		OK:     true,
		Queued: true,
		RoomID: res.RoomKey,
	})
}
