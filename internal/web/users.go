package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/ticketauth/internal/authkit"
	"go.uber.org/zap"
)

// HandleWhoAmI returns the credential profile of the authenticated principal.
func HandleWhoAmI(logger *zap.Logger, credentials authkit.CredentialStore) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if credentials == nil {
		panic("credential store is required")
	}

	return func(contextGin *gin.Context) {
		principal, found := authkit.PrincipalFromGin(contextGin)
		if !found || principal.SubjectID == "" {
			logger.Warn("missing principal on context",
				zap.String("code", "api.me.missing_principal"))
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		record, lookupErr := credentials.FindByID(contextGin.Request.Context(), principal.SubjectID)
		if lookupErr != nil {
			switch {
			case errors.Is(lookupErr, authkit.ErrCredentialNotFound):
				logger.Warn("credential record missing",
					zap.String("code", "api.me.profile_missing"),
					zap.String("subject_id", principal.SubjectID))
				contextGin.AbortWithStatus(http.StatusNotFound)
			case errors.Is(lookupErr, authkit.ErrStoreUnavailable):
				logger.Error("credential lookup unavailable",
					zap.String("code", "api.me.store_unavailable"),
					zap.String("subject_id", principal.SubjectID),
					zap.Error(lookupErr))
				contextGin.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "store_unavailable"})
			default:
				logger.Error("credential lookup error",
					zap.String("code", "api.me.profile_error"),
					zap.String("subject_id", principal.SubjectID),
					zap.Error(lookupErr))
				contextGin.AbortWithStatus(http.StatusInternalServerError)
			}
			return
		}

		contextGin.JSON(http.StatusOK, gin.H{
			"id":    record.ID,
			"email": record.Email,
			"name":  record.Name,
			"phone": record.Phone,
			"role":  principal.Role,
		})
	}
}
