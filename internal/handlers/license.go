package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"taskboard/api/internal/apperr"
	"taskboard/api/internal/middleware"
	"taskboard/api/internal/models"
	"taskboard/api/internal/service"
)

const maxLicenseFileSize = 1 << 20

type activateRequest struct {
	Key string `json:"key" binding:"required"`
}

type licenseStatusResponse struct {
	Licensed  bool       `json:"licensed"`
	ExpiresAt *time.Time `json:"expires_at"`
	Feature   *string    `json:"feature"`
}

var errLicenseFileTooLarge = apperr.New(apperr.KindValidation, "validation_error", "license file is too large")

func (h HandlerSet) LicenseStatus(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		h.respondError(c, service.ErrUnauthenticated)
		return
	}

	status, err := h.licenses.Status(c.Request.Context(), user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toLicenseStatusResponse(status))
}

func (h HandlerSet) ActivateLicense(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		h.respondError(c, service.ErrUnauthenticated)
		return
	}

	var req activateRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	status, err := h.licenses.ActivateByKey(c.Request.Context(), user.ID, req.Key)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toLicenseStatusResponse(status))
}

// ActivateLicenseFile takes the key file from the multipart "file" field, or the raw body
// for any other content type.
func (h HandlerSet) ActivateLicenseFile(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		h.respondError(c, service.ErrUnauthenticated)
		return
	}

	data, err := readLicenseFile(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	status, err := h.licenses.ActivateByFile(c.Request.Context(), user.ID, data)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toLicenseStatusResponse(status))
}

func readLicenseFile(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxLicenseFileSize+4096)

	var source io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			return nil, tooLargeOr(err, apperr.New(apperr.KindValidation, "validation_error", "file is required"))
		}
		file, err := header.Open()
		if err != nil {
			return nil, apperr.Internal(err, "open license file")
		}
		defer file.Close()
		source = file
	}

	data, err := io.ReadAll(io.LimitReader(source, maxLicenseFileSize+1))
	if err != nil {
		return nil, tooLargeOr(err, apperr.Wrap(apperr.KindValidation, "validation_error", err, "could not read license file"))
	}
	if len(data) > maxLicenseFileSize {
		return nil, errLicenseFileTooLarge
	}
	return data, nil
}

func tooLargeOr(err error, fallback error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return errLicenseFileTooLarge
	}
	return fallback
}

func toLicenseStatusResponse(status models.LicenseStatus) licenseStatusResponse {
	return licenseStatusResponse{
		Licensed:  status.Licensed,
		ExpiresAt: status.ExpiresAt,
		Feature:   status.Feature,
	}
}
