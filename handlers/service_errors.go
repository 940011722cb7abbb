package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/leasegate/leasegate/services"
	"github.com/leasegate/leasegate/utils"
)

// HandleServiceError maps domain errors to HTTP responses. Governed
// decisions (denials, settlements) are structured 200 bodies and never pass
// through here; this path carries genuine request failures.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)

	switch {
	case services.IsNotFoundError(err):
		if werr := utils.WriteNotFound(w, err.Error()); werr != nil {
			logger.Error("failed to write not found response", zap.Error(werr))
		}

	case services.IsValidationError(err):
		if werr := utils.WriteBadRequest(w, err.Error(), details); werr != nil {
			logger.Error("failed to write bad request response", zap.Error(werr))
		}

	case services.IsUnauthorizedError(err):
		if werr := utils.WriteUnauthorized(w, err.Error()); werr != nil {
			logger.Error("failed to write unauthorized response", zap.Error(werr))
		}

	case services.IsForbiddenError(err), services.IsPolicyError(err):
		if werr := utils.WriteJSON(w, http.StatusForbidden, utils.ErrorResponse{
			Error:   "forbidden",
			Message: err.Error(),
			Details: details,
		}); werr != nil {
			logger.Error("failed to write forbidden response", zap.Error(werr))
		}

	case services.IsCapacityError(err), services.IsBudgetError(err):
		if werr := utils.WriteJSON(w, http.StatusTooManyRequests, utils.ErrorResponse{
			Error:   "too_many_requests",
			Message: err.Error(),
			Details: details,
		}); werr != nil {
			logger.Error("failed to write capacity response", zap.Error(werr))
		}

	case services.IsConflictError(err):
		if werr := utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse{
			Error:   "conflict",
			Message: err.Error(),
			Details: details,
		}); werr != nil {
			logger.Error("failed to write conflict response", zap.Error(werr))
		}

	default:
		logger.Error("internal server error",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		if werr := utils.WriteInternalServerError(w, "an internal error occurred"); werr != nil {
			logger.Error("failed to write internal error response", zap.Error(werr))
		}
	}
}

// HandleValidationError handles validation errors from request parsing.
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			details[k] = v
		}
		if werr := utils.WriteBadRequest(w, "validation failed", details); werr != nil {
			logger.Error("failed to write validation error response", zap.Error(werr))
		}
		return
	}

	if werr := utils.WriteBadRequest(w, err.Error(), nil); werr != nil {
		logger.Error("failed to write validation error response", zap.Error(werr))
	}
}
