package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// APIError is the single error type returned by the client. Status is 0
// when no HTTP response was received.
type APIError struct {
	Status     int
	StatusText string
	Message    string
	Data       json.RawMessage
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.StatusText, e.Message)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.StatusText, e.Message)
}

// Transport reports whether the failure happened before a response arrived.
func (e *APIError) Transport() bool {
	return e.Status == 0
}

func networkError(err error) *APIError {
	return &APIError{
		Status:     0,
		StatusText: "Network Error",
		Message:    err.Error(),
	}
}

// responseError builds an APIError from a non-2xx response body.
func responseError(code int, body []byte) *APIError {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)

	serverMsg := payload.Message
	if serverMsg == "" {
		serverMsg = payload.Error
	}

	e := &APIError{
		Status:     code,
		StatusText: http.StatusText(code),
		Message:    statusMessage(code, serverMsg),
	}
	if json.Valid(body) {
		e.Data = json.RawMessage(body)
	}
	return e
}

func statusMessage(code int, serverMsg string) string {
	switch code {
	case http.StatusUnauthorized:
		return "Authentication required. Please log in."
	case http.StatusForbidden:
		return "Access denied. Insufficient permissions."
	case http.StatusNotFound:
		return "Resource not found."
	case http.StatusTooManyRequests:
		return "Too many requests. Please try again later."
	case http.StatusInternalServerError:
		return "Server error. Please try again later."
	}
	if serverMsg != "" {
		return serverMsg
	}
	return fmt.Sprintf("HTTP Error: %d", code)
}

// Describe returns text suitable for showing to the user.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return "An unexpected error occurred."
	}
	return err.Error()
}
