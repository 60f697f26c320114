package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/homeswift/homeswift-api/services"
)

// TrustScoreController serves /trust-scores
type TrustScoreController struct {
	trust *services.TrustScoreService
}

// NewTrustScoreController creates the controller
func NewTrustScoreController(trust *services.TrustScoreService) *TrustScoreController {
	return &TrustScoreController{trust: trust}
}

// Get handles GET /api/v1/trust-scores/:providerId, computing the first score on demand
func (ctl *TrustScoreController) Get(c *gin.Context) {
	providerID, ok := idParam(c, "providerId")
	if !ok {
		return
	}

	score, err := ctl.trust.GetOrCreate(c.Request.Context(), providerID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, score, nil)
}

// Recompute handles POST /api/v1/trust-scores/:providerId (admin)
func (ctl *TrustScoreController) Recompute(c *gin.Context) {
	providerID, ok := idParam(c, "providerId")
	if !ok {
		return
	}

	score, err := ctl.trust.UpdateTrustScore(c.Request.Context(), providerID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, score, nil)
}
