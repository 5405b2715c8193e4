package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"taskboard/api/internal/models"
	"taskboard/api/internal/service"
)

const licenseStatusKey = "license_status"

// LicenseChecker is implemented by service.LicenseService.
type LicenseChecker interface {
	Status(ctx context.Context, userID int64) (models.LicenseStatus, error)
}

// RequireLicense must run after Auth. It rejects users without a current license.
func RequireLicense(licenses LicenseChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abortWithError(c, service.ErrUnauthenticated)
			return
		}

		status, err := licenses.Status(c.Request.Context(), user.ID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if !status.Licensed {
			abortWithError(c, service.ErrLicenseRequired)
			return
		}

		c.Set(licenseStatusKey, status)
		c.Next()
	}
}

func CurrentLicense(c *gin.Context) (models.LicenseStatus, bool) {
	value, exists := c.Get(licenseStatusKey)
	if !exists {
		return models.LicenseStatus{}, false
	}
	status, ok := value.(models.LicenseStatus)
	return status, ok
}
