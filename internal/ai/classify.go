package ai

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"smartats/internal/errors"

	"github.com/sony/gobreaker/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// classifyError maps a failure from the model client to an ai AppError.
// Errors that are already AppErrors pass through unchanged.
func classifyError(err error) *errors.AppError {
	if appErr, ok := errors.As(err); ok {
		return appErr
	}

	switch {
	case stderrors.Is(err, gobreaker.ErrOpenState), stderrors.Is(err, gobreaker.ErrTooManyRequests):
		return errors.NewAIError(errors.ErrCodeAICircuitOpen,
			"AI service temporarily unavailable after repeated failures", err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.NewAIError(errors.ErrCodeAINetworkFailed, "AI request timed out", err)
	case stderrors.Is(err, context.Canceled):
		return errors.NewAIError(errors.ErrCodeAINetworkFailed, "AI request cancelled", err)
	}

	if status, message, ok := statusOf(err); ok {
		return errors.NewAIError(codeForStatus(status, message),
			fmt.Sprintf("AI service returned %d: %s", status, message), err).
			WithContext("status", status)
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return errors.NewAIError(errors.ErrCodeAINetworkFailed, "Could not reach AI service", err)
	}

	return errors.NewAIError(errors.ErrCodeAIServiceFailed, "AI service call failed", err)
}

// statusOf extracts an HTTP status from the error types the Gemini SDK and
// the Google API client return
func statusOf(err error) (int, string, bool) {
	var apiErr genai.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Message, true
	}
	var apiErrPtr *genai.APIError
	if stderrors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, apiErrPtr.Message, true
	}
	var gErr *googleapi.Error
	if stderrors.As(err, &gErr) {
		return gErr.Code, gErr.Message, true
	}
	return 0, "", false
}

func codeForStatus(status int, message string) string {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return errors.ErrCodeAIAuthFailed
	case status == http.StatusTooManyRequests:
		return errors.ErrCodeAIQuotaExceeded
	case status == http.StatusBadRequest && strings.Contains(strings.ToLower(message), "api key"):
		// Gemini reports an invalid key as 400 INVALID_ARGUMENT
		return errors.ErrCodeAIAuthFailed
	case status >= 400 && status < 500:
		return errors.ErrCodeAIBadRequest
	default:
		return errors.ErrCodeAIServiceFailed
	}
}
