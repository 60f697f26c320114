package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/homeswift/homeswift-api/services"
)

// DisputeController serves /disputes
type DisputeController struct {
	disputes *services.DisputeService
}

// NewDisputeController creates the controller
func NewDisputeController(disputes *services.DisputeService) *DisputeController {
	return &DisputeController{disputes: disputes}
}

// Create handles POST /api/v1/disputes
func (ctl *DisputeController) Create(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var in services.CreateDisputeInput
	if !bindJSON(c, &in, false) {
		return
	}

	result, err := ctl.disputes.CreateDispute(c.Request.Context(), actor, in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, result.Dispute, result.SideEffects)
}

// List handles GET /api/v1/disputes
func (ctl *DisputeController) List(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	disputes, err := ctl.disputes.ListDisputes(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, disputes, nil)
}

// Update handles PATCH /api/v1/disputes/:id (admin)
func (ctl *DisputeController) Update(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var in services.UpdateDisputeInput
	if !bindJSON(c, &in, false) {
		return
	}

	result, err := ctl.disputes.UpdateDispute(c.Request.Context(), actor, id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result.Dispute, result.SideEffects)
}
