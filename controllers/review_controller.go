package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/homeswift/homeswift-api/services"
)

// ReviewController serves /reviews
type ReviewController struct {
	reviews *services.ReviewService
}

// NewReviewController creates the controller
func NewReviewController(reviews *services.ReviewService) *ReviewController {
	return &ReviewController{reviews: reviews}
}

// Create handles POST /api/v1/reviews
func (ctl *ReviewController) Create(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var in services.CreateReviewInput
	if !bindJSON(c, &in, false) {
		return
	}

	result, err := ctl.reviews.CreateReview(c.Request.Context(), actor, in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, result.Review, result.SideEffects)
}

// List handles GET /api/v1/reviews?job_id=&provider_id=
func (ctl *ReviewController) List(c *gin.Context) {
	jobID, ok := uintQuery(c, "job_id")
	if !ok {
		return
	}
	providerID, ok := uintQuery(c, "provider_id")
	if !ok {
		return
	}

	reviews, err := ctl.reviews.ListReviews(c.Request.Context(), services.ListReviewsFilter{JobID: jobID, ProviderID: providerID})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, reviews, nil)
}
