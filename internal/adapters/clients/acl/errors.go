package acl

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jsamuelsen/quote-sync/internal/adapters/clients"
	"github.com/jsamuelsen/quote-sync/internal/domain"
)

// maxErrorBody bounds how much of an error response is read for context.
const maxErrorBody = 4 << 10

// ErrorResponse is the error body shape most JSON APIs return, either
// nested under "error" or flat.
type ErrorResponse struct {
	Error   ErrorDetail `json:"error"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ErrorDetail is the nested error object.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GetMessage returns the nested message, falling back to the flat one.
func (e *ErrorResponse) GetMessage() string {
	if e.Error.Message != "" {
		return e.Error.Message
	}

	return e.Message
}

// ParseErrorResponse decodes an error body. It returns nil when the body is
// empty, not JSON, or carries no message.
func ParseErrorResponse(body io.Reader) *ErrorResponse {
	if body == nil {
		return nil
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(io.LimitReader(body, maxErrorBody)).Decode(&errResp); err != nil {
		return nil
	}

	if errResp.GetMessage() == "" {
		return nil
	}

	return &errResp
}

// MapHTTPError turns a failed exchange with the quote source into a domain
// error. The service only reads from the source, so every failure means the
// source is unavailable for this sync: transport errors, an open circuit,
// exhausted retries and any non-2xx status alike.
func MapHTTPError(resp *http.Response, clientErr error, serviceName, operation string) error {
	if clientErr != nil {
		return &domain.UnavailableError{
			Service: serviceName,
			Reason:  clientReason(clientErr, operation),
			Cause:   clientErr,
		}
	}

	if resp == nil {
		return domain.NewUnavailableError(serviceName, "no response received")
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	reason := fmt.Sprintf("%s returned status %d", operation, resp.StatusCode)
	if errResp := ParseErrorResponse(resp.Body); errResp != nil {
		reason = fmt.Sprintf("%s: %s", reason, errResp.GetMessage())
	}

	return domain.NewUnavailableError(serviceName, reason)
}

func clientReason(err error, operation string) string {
	switch {
	case errors.Is(err, clients.ErrCircuitOpen):
		return fmt.Sprintf("circuit breaker open during %s", operation)
	case errors.Is(err, clients.ErrMaxRetriesExceeded):
		return fmt.Sprintf("max retries exceeded during %s", operation)
	default:
		return fmt.Sprintf("%s failed: %v", operation, err)
	}
}
