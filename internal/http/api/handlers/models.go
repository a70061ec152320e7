package handlers

import (
	"net/http"

	"github.com/fixyhq/fixy/internal/entitlement"

	"github.com/gin-gonic/gin"
)

// ModelHandler serves the per-user model availability list.
type ModelHandler struct {
	evaluator *entitlement.Evaluator
}

// NewModelHandler constructs a model handler.
func NewModelHandler(evaluator *entitlement.Evaluator) *ModelHandler {
	return &ModelHandler{evaluator: evaluator}
}

// List returns every catalog model annotated with availability for the
// current user. Credit balance does not affect the list.
func (h *ModelHandler) List(c *gin.Context) {
	userID := CurrentUserID(c)
	availability, errList := h.evaluator.Availability(c.Request.Context(), userID)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list models"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": availability})
}
