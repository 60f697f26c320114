package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/homeswift/homeswift-api/services"
)

// PaymentController serves payment escrow under /payments
type PaymentController struct {
	payments *services.PaymentService
}

// NewPaymentController creates the controller
func NewPaymentController(payments *services.PaymentService) *PaymentController {
	return &PaymentController{payments: payments}
}

// RefundRequest is the body of a refund
type RefundRequest struct {
	Reason string `json:"reason"`
}

// Create handles POST /api/v1/payments - accepts JSON or multipart/form-data with an optional "proof" file
func (ctl *PaymentController) Create(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var in services.CreatePaymentInput
	if err := c.ShouldBind(&in); err != nil {
		badRequest(c, "VALIDATION_ERROR", "Invalid request data", err.Error())
		return
	}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fileHeader, err := c.FormFile("proof")
		switch {
		case err == nil:
			in.Proof = fileHeader
		case errors.Is(err, http.ErrMissingFile):
		default:
			badRequest(c, "INVALID_REQUEST", "Failed to parse proof upload", err.Error())
			return
		}
	}

	result, err := ctl.payments.CreatePayment(c.Request.Context(), actor, in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, result.Payment, result.SideEffects)
}

// Get handles GET /api/v1/payments/:id
func (ctl *PaymentController) Get(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	payment, err := ctl.payments.GetPayment(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, payment, nil)
}

// List handles GET /api/v1/payments?job_id= (admin)
func (ctl *PaymentController) List(c *gin.Context) {
	jobID, ok := uintQuery(c, "job_id")
	if !ok {
		return
	}

	payments, err := ctl.payments.ListPayments(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, payments, nil)
}

// Verify handles POST /api/v1/payments/:id/verify (admin)
func (ctl *PaymentController) Verify(c *gin.Context) {
	ctl.transition(c, ctl.payments.VerifyPayment)
}

// Release handles POST /api/v1/payments/:id/release (admin)
func (ctl *PaymentController) Release(c *gin.Context) {
	ctl.transition(c, ctl.payments.ReleasePayment)
}

// Refund handles POST /api/v1/payments/:id/refund (admin)
func (ctl *PaymentController) Refund(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req RefundRequest
	if !bindJSON(c, &req, true) {
		return
	}

	result, err := ctl.payments.RefundPayment(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result.Payment, result.SideEffects)
}

type paymentTransition func(ctx context.Context, actor services.Actor, id uint) (*services.PaymentResult, error)

func (ctl *PaymentController) transition(c *gin.Context, apply paymentTransition) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	result, err := apply(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result.Payment, result.SideEffects)
}
