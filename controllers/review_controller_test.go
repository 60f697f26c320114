package controllers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviews(t *testing.T) {
	env := newAPIEnv(t)
	job := env.assignJob(t, env.providerA)

	w := env.do(t, env.customer, http.MethodPost, "/api/v1/reviews", gin.H{"job_id": job["id"], "rating": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "REVIEW_NOT_ALLOWED", errorOf(t, w)["code"])

	w = env.do(t, env.providerA, http.MethodPost, "/api/v1/service-requests/"+job["request_id"].(string)+"/confirm-completion", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, env.customer, http.MethodPost, "/api/v1/reviews", gin.H{"job_id": job["id"], "rating": 5, "comment": "Great work"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := dataOf(t, w)
	assert.Equal(t, "customer", data["reviewed_by"])
	assert.Equal(t, float64(env.providerA.ID), data["reviewee_id"])

	w = env.do(t, env.customer, http.MethodPost, "/api/v1/reviews", gin.H{"job_id": job["id"], "rating": 3})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DUPLICATE_REVIEW", errorOf(t, w)["code"])

	w = env.do(t, env.stranger, http.MethodPost, "/api/v1/reviews", gin.H{"job_id": job["id"], "rating": 3})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, env.stranger, http.MethodGet, fmt.Sprintf("/api/v1/reviews?provider_id=%d", env.providerA.ID), nil)
	assert.Len(t, listOf(t, w), 1)

	w = env.do(t, env.stranger, http.MethodGet, "/api/v1/reviews?job_id=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_QUERY", errorOf(t, w)["code"])
}
