package controllers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrustScores(t *testing.T) {
	env := newAPIEnv(t)
	path := fmt.Sprintf("/api/v1/trust-scores/%d", env.providerA.ID)

	w := env.do(t, env.customer, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := dataOf(t, w)
	assert.InDelta(t, 36.67, data["trust_score"], 0.001)
	assert.Equal(t, float64(1), data["verification_level"])

	w = env.do(t, env.customer, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, env.admin, http.MethodGet, fmt.Sprintf("/api/v1/trust-scores/%d", env.customer.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "PROVIDER_NOT_FOUND", errorOf(t, w)["code"])
}

func TestProviderVerification(t *testing.T) {
	env := newAPIEnv(t)
	path := fmt.Sprintf("/api/v1/providers/%d", env.providerA.ID)

	w := env.do(t, env.customer, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "pending", dataOf(t, w)["verification_status"])

	w = env.do(t, env.admin, http.MethodPatch, path+"/verification", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorOf(t, w)["code"])

	w = env.do(t, env.admin, http.MethodPatch, path+"/verification", gin.H{"verification_status": "verified"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "verified", dataOf(t, w)["verification_status"])

	w = env.do(t, env.admin, http.MethodPost, fmt.Sprintf("/api/v1/trust-scores/%d", env.providerA.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(3), dataOf(t, w)["verification_level"])
}
