package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	keyworddomain "github.com/smallbiznis/sparks/internal/keyword/domain"
)

type syncKeywordsResponse struct {
	OK     bool                           `json:"ok"`
	Counts map[keyworddomain.Category]int `json:"counts"`
}

// SyncKeywords replaces each category named in the body. The legacy
// {"keywords": [...]} body is treated as the opening set.
func (s *Server) SyncKeywords(c *gin.Context) {
	var raw map[string]json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil || raw == nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	req, err := buildSyncRequest(raw)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.keywordSvc.Sync(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, syncKeywordsResponse{OK: true, Counts: result.Counts})
}

func buildSyncRequest(raw map[string]json.RawMessage) (keyworddomain.SyncRequest, error) {
	req := make(keyworddomain.SyncRequest, len(raw))
	var legacy []string
	hasLegacy := false

	for key, value := range raw {
		var words []string
		if err := json.Unmarshal(value, &words); err != nil || words == nil {
			return nil, newValidationError(key, "invalid_keywords", "keywords must be a list of strings")
		}
		if key == keyworddomain.LegacyKeywordsField {
			legacy, hasLegacy = words, true
			continue
		}
		category, err := keyworddomain.ParseCategory(key)
		if err != nil {
			return nil, newValidationError(key, "invalid_category", "category must be opening, booking or transaction")
		}
		req[category] = words
	}

	if _, ok := req[keyworddomain.CategoryOpening]; hasLegacy && !ok {
		req[keyworddomain.CategoryOpening] = legacy
	}
	return req, nil
}
