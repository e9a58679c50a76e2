package authkit

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/ticketauth/pkg/sessionvalidator"
	"go.uber.org/zap"
)

// MountAuthRoutes registers /auth/signup, /auth/login, /auth/logout, and /auth/refresh.
func MountAuthRoutes(router gin.IRouter, service *SessionService, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	router.POST("/auth/signup", func(contextGin *gin.Context) {
		var inbound struct {
			Email    string `json:"email" binding:"required,email"`
			Password string `json:"password" binding:"required"`
			Name     string `json:"name" binding:"required"`
			Phone    string `json:"phone"`
		}
		if err := contextGin.ShouldBindJSON(&inbound); err != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		_, signupErr := service.Signup(contextGin.Request.Context(), SignupRequest{
			Email:    inbound.Email,
			Password: inbound.Password,
			Name:     inbound.Name,
			Phone:    inbound.Phone,
		})
		if signupErr != nil {
			writeServiceError(contextGin, logger, signupErr, "auth.signup")
			return
		}
		contextGin.Status(http.StatusCreated)
	})

	router.POST("/auth/login", func(contextGin *gin.Context) {
		var inbound struct {
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := contextGin.ShouldBindJSON(&inbound); err != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		pair, loginErr := service.Login(contextGin.Request.Context(), inbound.Email, inbound.Password)
		if loginErr != nil {
			writeServiceError(contextGin, logger, loginErr, "auth.login")
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{
			"access_token":       pair.AccessToken.Value,
			"refresh_token":      pair.RefreshToken.Value,
			"access_expires_at":  pair.AccessToken.ExpiresAt.Format(time.RFC3339),
			"refresh_expires_at": pair.RefreshToken.ExpiresAt.Format(time.RFC3339),
		})
	})

	router.POST("/auth/logout", func(contextGin *gin.Context) {
		var inbound struct {
			Token string `json:"token"`
		}
		_ = contextGin.ShouldBindJSON(&inbound)
		token := strings.TrimSpace(inbound.Token)
		if token == "" {
			token, _ = sessionvalidator.BearerToken(contextGin.GetHeader("Authorization"))
		}
		if token != "" {
			if logoutErr := service.Logout(contextGin.Request.Context(), token); logoutErr != nil {
				writeServiceError(contextGin, logger, logoutErr, "auth.logout")
				return
			}
		}
		contextGin.Status(http.StatusNoContent)
	})

	router.POST("/auth/refresh", func(contextGin *gin.Context) {
		var inbound struct {
			RefreshToken string `json:"refresh_token" binding:"required"`
		}
		if err := contextGin.ShouldBindJSON(&inbound); err != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		outcome, refreshErr := service.Refresh(contextGin.Request.Context(), inbound.RefreshToken)
		if refreshErr != nil {
			writeServiceError(contextGin, logger, refreshErr, "auth.refresh")
			return
		}
		if !outcome.Renewed {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not_renewable"})
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{
			"access_token":      outcome.AccessToken.Value,
			"access_expires_at": outcome.AccessToken.ExpiresAt.Format(time.RFC3339),
		})
	})
}

func writeServiceError(contextGin *gin.Context, logger *zap.Logger, err error, code string) {
	switch {
	case errors.Is(err, ErrEmailTaken):
		contextGin.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "email_taken"})
	case errors.Is(err, ErrInvalidCredentials):
		contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
	case errors.Is(err, ErrInvalidSignup):
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_signup"})
	case errors.Is(err, ErrStoreUnavailable):
		logger.Error("store unavailable", zap.String("code", code+".store_unavailable"), zap.Error(err))
		contextGin.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "store_unavailable"})
	default:
		logger.Error("unexpected failure", zap.String("code", code+".internal"), zap.Error(err))
		contextGin.AbortWithStatus(http.StatusInternalServerError)
	}
}
