package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/homeswift/homeswift-api/services"
)

// ServiceRequestController serves the booking lifecycle under /service-requests
type ServiceRequestController struct {
	requests *services.RequestService
}

// NewServiceRequestController creates the controller
func NewServiceRequestController(requests *services.RequestService) *ServiceRequestController {
	return &ServiceRequestController{requests: requests}
}

// Create handles POST /api/v1/service-requests - books a job (customers only)
func (ctl *ServiceRequestController) Create(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var in services.CreateRequestInput
	if !bindJSON(c, &in, false) {
		return
	}

	result, err := ctl.requests.CreateRequest(c.Request.Context(), actor, in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, result.Request, result.SideEffects)
}

// List handles GET /api/v1/service-requests?status=
func (ctl *ServiceRequestController) List(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	requests, err := ctl.requests.ListRequests(c.Request.Context(), actor, services.ListRequestsFilter{Status: c.Query("status")})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, requests, nil)
}

// Get handles GET /api/v1/service-requests/:id - id is numeric or the public HS- id
func (ctl *ServiceRequestController) Get(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	req, err := ctl.requests.GetRequest(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, req, nil)
}

// ShowInterest handles POST /api/v1/service-requests/:id/show-interest
func (ctl *ServiceRequestController) ShowInterest(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var in services.ShowInterestInput
	if !bindJSON(c, &in, true) {
		return
	}

	result, err := ctl.requests.ShowInterest(c.Request.Context(), actor, c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result.Request, result.SideEffects)
}

// AssignProvider handles POST /api/v1/service-requests/:id/assign-provider (admin)
func (ctl *ServiceRequestController) AssignProvider(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var in services.AssignProviderInput
	if !bindJSON(c, &in, false) {
		return
	}

	result, err := ctl.requests.AssignProvider(c.Request.Context(), actor, c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result.Request, result.SideEffects)
}

// RemoveInterest handles DELETE /api/v1/service-requests/:id/assign-provider (admin)
func (ctl *ServiceRequestController) RemoveInterest(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var in services.RemoveInterestInput
	if !bindJSON(c, &in, false) {
		return
	}

	result, err := ctl.requests.RemoveInterest(c.Request.Context(), actor, c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result.Request, result.SideEffects)
}

// ConfirmCompletion handles POST /api/v1/service-requests/:id/confirm-completion
func (ctl *ServiceRequestController) ConfirmCompletion(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	result, err := ctl.requests.ConfirmCompletion(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"request":        result.Request,
		"confirmed_by":   result.Party,
		"one_confirmed":  result.OneConfirmed,
		"both_confirmed": result.Completed,
		"can_rate":       result.CanRate(),
	}, result.SideEffects)
}

// Update handles PATCH /api/v1/service-requests/:id (admin)
func (ctl *ServiceRequestController) Update(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var in services.UpdateRequestInput
	if !bindJSON(c, &in, false) {
		return
	}

	result, err := ctl.requests.UpdateRequest(c.Request.Context(), actor, c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result.Request, result.SideEffects)
}
