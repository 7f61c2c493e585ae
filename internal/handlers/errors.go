package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mossy-p/castiq/internal/apperr"
	"github.com/mossy-p/castiq/internal/models"
)

// errorResponse maps a pipeline error to its status code and body.
func errorResponse(err error) (int, models.ErrorResponse) {
	var (
		input       *apperr.ClientInputError
		missing     *apperr.ResourceMissingError
		cfg         *apperr.ConfigError
		proc        *apperr.ExternalProcessError
		unreachable *apperr.ServiceUnreachableError
		rejected    *apperr.ServiceRejectedError
		exhausted   *apperr.RetryExhaustedError
	)

	switch {
	case errors.As(err, &input):
		return http.StatusBadRequest, models.ErrorResponse{Error: input.Message}
	case errors.As(err, &missing):
		return http.StatusNotFound, models.ErrorResponse{Error: missing.Error()}
	case errors.As(err, &cfg):
		return http.StatusInternalServerError, models.ErrorResponse{Error: "Server is misconfigured", Detail: cfg.Error()}
	case errors.As(err, &proc):
		return http.StatusInternalServerError, models.ErrorResponse{Error: "Media processing failed", Detail: proc.Detail()}
	case errors.As(err, &unreachable):
		return http.StatusBadGateway, models.ErrorResponse{Error: unreachable.Service + " service unreachable", Detail: unreachable.Remediation()}
	case errors.As(err, &rejected):
		return http.StatusBadGateway, models.ErrorResponse{Error: rejected.Error(), Detail: rejected.Body}
	case errors.As(err, &exhausted):
		status := http.StatusBadGateway
		if apperr.IsTimeout(exhausted.Last) {
			status = http.StatusGatewayTimeout
		}
		return status, models.ErrorResponse{Error: "External service failed after retries", Detail: exhausted.Error()}
	default:
		return http.StatusInternalServerError, models.ErrorResponse{Error: "Processing failed", Detail: err.Error()}
	}
}

func respondError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	c.Error(err)
	c.AbortWithStatusJSON(status, body)
}
