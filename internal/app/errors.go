package app

import (
	"errors"
	"fmt"
	"net/http"

	"ideajournal/internal/authpw"
	"ideajournal/internal/credentials"
	"ideajournal/internal/export"
	"ideajournal/internal/ideas"
)

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

var errInvalidBody = domainError(http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, ideas.ErrValidation), errors.Is(err, authpw.ErrInvalidInput):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, ideas.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Idea not found", nil
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil
	case errors.Is(err, authpw.ErrAlreadyExists):
		return http.StatusConflict, "USER_EXISTS", "User already exists", nil
	case errors.Is(err, export.ErrPDFDependencyMissing):
		return http.StatusServiceUnavailable, "RENDER_UNAVAILABLE", "Document renderer unavailable", nil
	case errors.Is(err, credentials.ErrStoreCorrupt):
		return http.StatusInternalServerError, "SERVER_ERROR", "Credential store unavailable", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
