package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/homeswift/homeswift-api/services"
)

// ProviderController serves provider profiles under /providers
type ProviderController struct {
	providers *services.ProviderService
}

// NewProviderController creates the controller
func NewProviderController(providers *services.ProviderService) *ProviderController {
	return &ProviderController{providers: providers}
}

// VerificationRequest is the body of a verification decision
type VerificationRequest struct {
	VerificationStatus string `json:"verification_status" binding:"required"`
}

// Get handles GET /api/v1/providers/:id
func (ctl *ProviderController) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	profile, err := ctl.providers.GetProfile(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, profile, nil)
}

// UpdateVerification handles PATCH /api/v1/providers/:id/verification (admin)
func (ctl *ProviderController) UpdateVerification(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req VerificationRequest
	if !bindJSON(c, &req, false) {
		return
	}

	result, err := ctl.providers.UpdateVerification(c.Request.Context(), actor, id, req.VerificationStatus)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result.Profile, result.SideEffects)
}
