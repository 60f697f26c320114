package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/homeswift/homeswift-api/middleware"
	"github.com/homeswift/homeswift-api/models"
	"github.com/homeswift/homeswift-api/services"
	"github.com/homeswift/homeswift-api/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// apiEnv is a router over the domain controllers with users already stored.
// Requests pick their caller with the X-Test-Subject header.
type apiEnv struct {
	db     *gorm.DB
	svc    *services.Services
	s3     *services.MockS3Service
	router *gin.Engine

	customer  *models.User
	stranger  *models.User
	providerA *models.User
	providerB *models.User
	admin     *models.User
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewTestDB(t)
	env := &apiEnv{db: db, s3: services.NewMockS3Service()}
	env.svc = services.New(services.Dependencies{
		DB:         db,
		Email:      services.NewMockEmailService(),
		Events:     services.NewMockEventPublisher(),
		Proofs:     services.NewS3ProofService(env.s3),
		CalloutFee: decimal.RequireFromString("25.00"),
	})
	require.NoError(t, env.svc.Pricing.EnsureDefaults(context.Background()))

	env.customer = testutil.CreateUser(t, db, "carol", models.RoleCustomer)
	env.stranger = testutil.CreateUser(t, db, "sam", models.RoleCustomer)
	env.providerA = testutil.CreateUser(t, db, "alice", models.RoleProvider)
	env.providerB = testutil.CreateUser(t, db, "bob", models.RoleProvider)
	env.admin = testutil.CreateUser(t, db, "ada", models.RoleAdmin)

	requests := NewServiceRequestController(env.svc.Requests)
	payments := NewPaymentController(env.svc.Payments)
	reviews := NewReviewController(env.svc.Reviews)
	disputes := NewDisputeController(env.svc.Disputes)
	trust := NewTrustScoreController(env.svc.Trust)
	providers := NewProviderController(env.svc.Providers)
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	router := gin.New()
	api := router.Group("/api/v1", testutil.MockAuth(env.customer.Auth0ID), middleware.LoadActor(db))

	api.POST("/service-requests", middleware.RequireRole(models.RoleCustomer), requests.Create)
	api.GET("/service-requests", requests.List)
	api.GET("/service-requests/:id", requests.Get)
	api.PATCH("/service-requests/:id", adminOnly, requests.Update)
	api.POST("/service-requests/:id/show-interest", middleware.RequireRole(models.RoleProvider), requests.ShowInterest)
	api.POST("/service-requests/:id/assign-provider", adminOnly, requests.AssignProvider)
	api.DELETE("/service-requests/:id/assign-provider", adminOnly, requests.RemoveInterest)
	api.POST("/service-requests/:id/confirm-completion", requests.ConfirmCompletion)

	api.POST("/payments", middleware.RequireRole(models.RoleCustomer), payments.Create)
	api.GET("/payments", adminOnly, payments.List)
	api.GET("/payments/:id", payments.Get)
	api.POST("/payments/:id/verify", adminOnly, payments.Verify)
	api.POST("/payments/:id/release", adminOnly, payments.Release)
	api.POST("/payments/:id/refund", adminOnly, payments.Refund)

	api.GET("/reviews", reviews.List)
	api.POST("/reviews", reviews.Create)
	api.GET("/disputes", disputes.List)
	api.POST("/disputes", disputes.Create)
	api.PATCH("/disputes/:id", adminOnly, disputes.Update)

	api.GET("/trust-scores/:providerId", trust.Get)
	api.POST("/trust-scores/:providerId", adminOnly, trust.Recompute)
	api.GET("/providers/:id", providers.Get)
	api.PATCH("/providers/:id/verification", adminOnly, providers.UpdateVerification)

	env.router = router
	return env
}

// do sends a JSON request as the given user. A nil body sends no body.
func (e *apiEnv) do(t *testing.T, as *models.User, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Test-Subject", as.Auth0ID)

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// booking is a request body that prices to 180.00
func booking(email string) gin.H {
	return gin.H{
		"customer_name":    "Carol Customer",
		"customer_email":   email,
		"customer_phone":   "+15550101",
		"customer_address": "1 Main Street",
		"preferred_date":   "2030-06-01",
		"preferred_time":   "09:00",
		"selected_items": []gin.H{
			{"category": "sofa", "service_type": "3-seater", "quantity": 1, "is_white": true},
			{"category": "carpet", "service_type": "small", "quantity": 2},
		},
	}
}

// createJob books a job as the customer and returns its data object
func (e *apiEnv) createJob(t *testing.T) map[string]interface{} {
	t.Helper()
	w := e.do(t, e.customer, http.MethodPost, "/api/v1/service-requests", booking(e.customer.Email))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return dataOf(t, w)
}

// assignJob books a job and assigns it to provider
func (e *apiEnv) assignJob(t *testing.T, provider *models.User) map[string]interface{} {
	t.Helper()
	job := e.createJob(t)
	w := e.do(t, e.admin, http.MethodPost, "/api/v1/service-requests/"+job["request_id"].(string)+"/assign-provider",
		gin.H{"provider_id": provider.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return dataOf(t, w)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func dataOf(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	body := decodeBody(t, w)
	require.Equal(t, true, body["success"], w.Body.String())
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok, "data is not an object: %s", w.Body.String())
	return data
}

func listOf(t *testing.T, w *httptest.ResponseRecorder) []interface{} {
	t.Helper()
	body := decodeBody(t, w)
	require.Equal(t, true, body["success"], w.Body.String())
	items, ok := body["data"].([]interface{})
	require.True(t, ok, "data is not a list: %s", w.Body.String())
	return items
}

// errorOf returns the error object of a failed response
func errorOf(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	body := decodeBody(t, w)
	require.Equal(t, false, body["success"], w.Body.String())
	errObj, ok := body["error"].(map[string]interface{})
	require.True(t, ok, w.Body.String())
	return errObj
}

// idString renders a JSON number id for use in a path
func idString(v interface{}) string {
	return fmt.Sprintf("%.0f", v.(float64))
}

// amount parses a decimal money field, which marshals as a JSON string
func amount(t *testing.T, v interface{}) decimal.Decimal {
	t.Helper()
	s, ok := v.(string)
	require.True(t, ok, "amount %v is not a string", v)
	return decimal.RequireFromString(s)
}
