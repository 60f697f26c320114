package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/homeswift/homeswift-api/middleware"
	"github.com/homeswift/homeswift-api/services"
	"github.com/rs/zerolog/log"
)

// respond writes the success envelope. Side effects are listed only when a write ran any.
func respond(c *gin.Context, status int, data interface{}, effects services.SideEffects) {
	body := gin.H{
		"success": true,
		"data":    data,
	}
	if effects != nil {
		body["side_effects"] = effects
	}
	c.JSON(status, body)
}

// respondError writes the error envelope for err. Internal causes are logged, not returned.
func respondError(c *gin.Context, err error) {
	svcErr := services.AsServiceError(err)

	payload := gin.H{
		"code":    svcErr.Code,
		"message": svcErr.Message,
	}
	if svcErr.Kind == services.KindInternal {
		log.Error().Err(err).Str("path", c.FullPath()).Str("code", svcErr.Code).Msg("request failed")
	} else if len(svcErr.Details) > 0 {
		payload["details"] = svcErr.Details
	}

	c.JSON(svcErr.HTTPStatus(), gin.H{
		"success": false,
		"error":   payload,
	})
}

func badRequest(c *gin.Context, code, message string, details interface{}) {
	payload := gin.H{
		"code":    code,
		"message": message,
	}
	if details != nil {
		payload["details"] = details
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   payload,
	})
}

// actorOrAbort returns the loaded actor, writing a 401 when the route was mounted without LoadActor
func actorOrAbort(c *gin.Context) (services.Actor, bool) {
	actor, err := middleware.GetActor(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user information",
			},
		})
		return services.Actor{}, false
	}
	return actor, true
}

// idParam parses a numeric path parameter
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "INVALID_ID", "Invalid "+name, nil)
		return 0, false
	}
	return uint(id), true
}

// uintQuery parses an optional numeric query parameter; absent means zero
func uintQuery(c *gin.Context, name string) (uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		badRequest(c, "INVALID_QUERY", "Invalid "+name, nil)
		return 0, false
	}
	return uint(v), true
}

// bindJSON decodes the body, allowing an empty body when optional is set
func bindJSON(c *gin.Context, dst interface{}, optional bool) bool {
	if optional && c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "VALIDATION_ERROR", "Invalid request data", err.Error())
		return false
	}
	return true
}
