package responses

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"solara.ai/insights-gateway/app/domain/generation"
	"solara.ai/insights-gateway/app/domain/subject"
	"solara.ai/insights-gateway/app/utils/contextkeys"
	"solara.ai/insights-gateway/app/utils/logger"
)

const (
	CodeValidation        = "4645668c-a2e8-45da-89bb-c285439b4afd"
	CodeSubjectNotFound   = "3d3238ff-c89f-4a96-b566-28828440c1a0"
	CodeThrottled         = "1c5fb3a5-29e6-4f25-8b54-596c23ddda5f"
	CodeBudgetExceeded    = "dc037888-ef4b-467e-a1b9-5d4f574e209d"
	CodeUnavailable       = "ea7d2af4-db31-4e88-b531-5d55f62d4628"
	CodeStillGenerating   = "da1516be-4ecc-4b37-8762-db8a5d07d376"
	CodeGenerationFailed  = "c2e3379e-7972-4570-a533-69044efe7b36"
	CodeRequestCancelled  = "ced76079-e29b-40ef-8a6a-664f6c0ad938"
	CodeInternal          = "0f5892b7-8bc7-46e1-8631-5e10a07c6018"
	CodeAdminDisabled     = "dd68da3e-7cfc-405c-84b5-5d2a8532ca8b"
	CodeUnauthorized      = "1b8bc576-1a7a-4779-835c-44a851c85acd"
	CodeMissingSubjectKey = "ad559c27-2eb3-476f-9fe8-3c0f6adbb8bf"
)

// statusClientClosedRequest is the de facto status for a caller that went away.
const statusClientClosedRequest = 499

// AbortWithError maps a domain error to a status code and JSON body and
// sets Retry-After when the error carries a hint.
func AbortWithError(reqCtx *gin.Context, err error) {
	status, body := errorResponse(err)
	if body.RetryAfter > 0 {
		reqCtx.Header("Retry-After", strconv.Itoa(body.RetryAfter))
	}
	if status >= http.StatusInternalServerError {
		logger.GetLogger().WithFields(logrus.Fields{
			"request_id": contextkeys.RequestIDFrom(reqCtx.Request.Context()),
			"status":     status,
			"code":       body.Code,
		}).WithError(err).Warn("request failed")
	}
	_ = reqCtx.Error(err)
	reqCtx.AbortWithStatusJSON(status, body)
}

func errorResponse(err error) (int, ErrorResponse) {
	retryAfter, _ := generation.RetryAfter(err)

	var validation *generation.ValidationError
	var throttled *generation.ThrottledError
	var budgetExceeded *generation.BudgetExceededError
	var stillGenerating *generation.StillGeneratingError
	var unavailable *generation.ServiceUnavailableError
	var generationErr *generation.GenerationError

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, ErrorResponse{Code: CodeValidation, Error: validation.Error()}
	case errors.Is(err, subject.ErrInvalidProfile):
		return http.StatusBadRequest, ErrorResponse{Code: CodeValidation, Error: err.Error()}
	case errors.Is(err, subject.ErrSubjectNotFound):
		return http.StatusNotFound, ErrorResponse{Code: CodeSubjectNotFound, Error: "subject not found"}
	case errors.As(err, &throttled):
		return http.StatusTooManyRequests, ErrorResponse{Code: CodeThrottled, Error: throttled.Error(), RetryAfter: retryAfter}
	case errors.As(err, &budgetExceeded):
		return http.StatusServiceUnavailable, ErrorResponse{Code: CodeBudgetExceeded, Error: "daily generation budget exhausted", RetryAfter: retryAfter}
	case errors.As(err, &stillGenerating):
		return http.StatusServiceUnavailable, ErrorResponse{
			Code:       CodeStillGenerating,
			Error:      "content is being generated",
			RetryAfter: retryAfter,
			Status:     ResponseStatusGenerating,
		}
	case errors.As(err, &unavailable):
		return http.StatusServiceUnavailable, ErrorResponse{
			Code:       CodeUnavailable,
			Error:      string(unavailable.Component) + " store unavailable",
			RetryAfter: retryAfter,
		}
	case errors.As(err, &generationErr):
		return http.StatusBadGateway, ErrorResponse{Code: CodeGenerationFailed, Error: "content generation failed"}
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, ErrorResponse{Code: CodeRequestCancelled, Error: "request cancelled"}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorResponse{Code: CodeRequestCancelled, Error: "request timed out"}
	default:
		return http.StatusInternalServerError, ErrorResponse{Code: CodeInternal, Error: "internal error"}
	}
}
