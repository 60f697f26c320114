package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/homeswift/homeswift-api/middleware"
	"github.com/homeswift/homeswift-api/services"
	"github.com/rs/zerolog/log"
)

// UserController serves account creation and the caller's own profile under /users
type UserController struct {
	users    *services.UserService
	userInfo services.UserInfoFetcher
}

// NewUserController creates the controller
func NewUserController(users *services.UserService, userInfo services.UserInfoFetcher) *UserController {
	return &UserController{users: users, userInfo: userInfo}
}

// CreateUser handles POST /api/v1/users - creates a new user from Auth0 userinfo
// This endpoint requires authentication and fetches user data from Auth0's /userinfo endpoint
func (ctl *UserController) CreateUser(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user ID from token",
			},
		})
		return
	}

	accessToken, err := middleware.GetAccessToken(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MISSING_TOKEN",
				"message": "Access token not found",
			},
		})
		return
	}

	userInfo, err := ctl.userInfo.GetUserInfo(c.Request.Context(), accessToken)
	if err != nil {
		log.Error().Err(err).Str("auth0_id", auth0ID).Msg("userinfo lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "AUTH0_ERROR",
				"message": "Failed to fetch user information from Auth0",
			},
		})
		return
	}

	// The role claim only seeds new accounts; afterwards the stored role is authoritative
	role := ""
	if claims, err := middleware.GetClaims(c); err == nil {
		if customClaims, ok := claims.CustomClaims.(*middleware.CustomClaims); ok {
			role = customClaims.Role
		}
	}

	user, err := ctl.users.CreateUser(c.Request.Context(), auth0ID, userInfo, role)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, user, nil)
}

// GetMyProfile handles GET /api/v1/users/me - gets current user's profile
func (ctl *UserController) GetMyProfile(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user information",
			},
		})
		return
	}

	user, err := ctl.users.GetByAuth0ID(c.Request.Context(), auth0ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, user, nil)
}

// UpdateMyProfile handles PUT /api/v1/users/me - updates current user's profile
func (ctl *UserController) UpdateMyProfile(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user information",
			},
		})
		return
	}

	var in services.UpdateProfileInput
	if !bindJSON(c, &in, false) {
		return
	}

	user, err := ctl.users.UpdateProfile(c.Request.Context(), auth0ID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, user, nil)
}
