// internal/handlers/common.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/njcabinets/sales-backend/internal/services"
	"github.com/njcabinets/sales-backend/internal/utils"
)

// respondServiceError maps the service error taxonomy onto HTTP statuses:
// not found 404, conflict 409, precondition failed 412, everything else 500.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		utils.NotFoundResponse(c, err.Error())
	case errors.Is(err, services.ErrConflict):
		utils.ConflictResponse(c, err.Error())
	case errors.Is(err, services.ErrPrecondition):
		utils.PreconditionFailedResponse(c, err.Error())
	default:
		utils.InternalErrorResponse(c, err.Error())
	}
}
