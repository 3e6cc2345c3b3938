package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sigmundftw/educabot/internal/slack"
	"github.com/sigmundftw/educabot/internal/store"
)

// DomainError is a failure the HTTP layer reports with its own status.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, store.ErrMissingKey) {
		return http.StatusBadRequest, "MISSING_KEY", "Workspace and channel are required", nil
	}
	var storeErr *store.StoreError
	if errors.As(err, &storeErr) {
		return http.StatusInternalServerError, "STORE_UNAVAILABLE", "Record store unavailable", nil
	}
	var schemaErr *store.SchemaError
	if errors.As(err, &schemaErr) {
		return http.StatusInternalServerError, "CORRUPT_RECORD", "Stored record is invalid", nil
	}
	var apiErr *slack.APIError
	if errors.As(err, &apiErr) {
		return http.StatusBadGateway, "CHAT_API_ERROR", "Chat platform call failed", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
