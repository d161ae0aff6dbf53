// Package response defines the JSON envelope rendered by every API endpoint.
package response

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the envelope rendered for both success and error payloads.
type Response struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message"`
	Details []any  `json:"details,omitempty"`
	Data    any    `json:"data,omitempty"`
}

var BadRequestResponse = Response{
	Status:  StatusError,
	Error:   "Bad Request",
	Message: "The request body couldn't be processed. Check the data provided.",
}

var ResourceNotFoundResponse = Response{
	Status:  StatusError,
	Error:   "Resource Not Found",
	Message: "The requested resource was not found.",
}

var LinkExpiredResponse = Response{
	Status:  StatusError,
	Error:   "Link Expired",
	Message: "The requested link has expired.",
}

var LinkExhaustedResponse = Response{
	Status:  StatusError,
	Error:   "Link Usage Exhausted",
	Message: "The requested link has reached its usage limit.",
}

var RateLimitExceededResponse = Response{
	Status:  StatusError,
	Error:   "Rate Limit Exceeded",
	Message: "Too many links created from this address. Try again later.",
}

var ServerErrorResponse = Response{
	Status:  StatusError,
	Error:   "Server Error",
	Message: "An internal server error occurred. Please try again later.",
}

// SuccessResponse builds a success envelope with an optional data payload.
// Only the first data value is used.
func SuccessResponse(msg string, data ...any) Response {
	resp := Response{
		Status:  StatusSuccess,
		Message: msg,
	}

	if len(data) > 0 {
		resp.Data = data[0]
	}

	return resp
}

// ClientErrorResponse builds a validation error envelope carrying a single
// caller-supplied reason.
func ClientErrorResponse(msg string) Response {
	return Response{
		Status:  StatusError,
		Error:   "Validation Error",
		Message: msg,
	}
}

// ValidationErrorResponse builds a validation error envelope with one detail
// entry per violated struct field.
func ValidationErrorResponse(err error) Response {
	resp := Response{
		Status:  StatusError,
		Error:   "Validation Error",
		Message: "The request contains invalid data. Check the details.",
	}

	for _, vErr := range getValidationErrors(err) {
		resp.Details = append(resp.Details, vErr)
	}

	return resp
}

// validationError describes a single violated field.
type validationError struct {
	Field string `json:"field"`
	Value any    `json:"value"`
	Issue string `json:"issue"`
}

// getValidationErrors extracts field details from a validator error.
func getValidationErrors(err error) []validationError {
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return nil
	}

	res := make([]validationError, 0, len(vErrs))
	for _, vErr := range vErrs {
		res = append(res, validationError{
			Field: vErr.Field(),
			Value: vErr.Value(),
			Issue: messageForTag(vErr),
		})
	}

	return res
}

// messageForTag maps a violated validation tag to a client-facing message.
func messageForTag(vErr validator.FieldError) string {
	switch vErr.Tag() {
	case "required":
		return "This field is required."
	case "url":
		return "Invalid url."
	case "gt":
		return "Must be greater than " + vErr.Param() + "."
	default:
		return "Invalid value."
	}
}
