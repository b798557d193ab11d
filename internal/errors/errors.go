package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrCode represents an error code
type ErrCode string

const (
	ErrCodeNotFound     ErrCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrCode = "UNAUTHORIZED"
	ErrCodeRateLimited  ErrCode = "RATE_LIMITED"
	ErrCodeInternal     ErrCode = "INTERNAL_ERROR"
	ErrCodeBadRequest   ErrCode = "BAD_REQUEST"

	// Harvest pipeline failure kinds
	ErrCodeTransport       ErrCode = "TRANSPORT_ERROR"
	ErrCodeNoRun           ErrCode = "NO_RUN"
	ErrCodeArtifactListing ErrCode = "ARTIFACT_LISTING_FAILED"
	ErrCodeNoArtifact      ErrCode = "NO_ARTIFACT"
	ErrCodeDownload        ErrCode = "DOWNLOAD_FAILED"
	ErrCodeParse           ErrCode = "PARSE_ERROR"
)

// AppError represents an application error
type AppError struct {
	Code    ErrCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeUnauthorized,
		Message: message,
	}
}

// NewRateLimitedError creates a new rate limited error
func NewRateLimitedError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeRateLimited,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
		Err:     err,
	}
}

// NewBadRequestError creates a new bad request error
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeBadRequest,
		Message: message,
	}
}

// NewTransportError wraps a failed or non-2xx forge call
func NewTransportError(operation string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeTransport,
		Message: operation + " failed",
		Err:     err,
	}
}

// NewNoRunError signals that no completed grading run matched the commit
func NewNoRunError(repo, sha string) *AppError {
	return &AppError{
		Code:    ErrCodeNoRun,
		Message: fmt.Sprintf("no completed grading run for %s at %s", repo, sha),
	}
}

// NewArtifactListingError wraps a failed artifact listing call
func NewArtifactListingError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeArtifactListing,
		Message: "failed to list artifacts",
		Err:     err,
	}
}

// NewNoArtifactError signals that the run has no artifact with the given name
func NewNoArtifactError(name string) *AppError {
	return &AppError{
		Code:    ErrCodeNoArtifact,
		Message: fmt.Sprintf("no %q artifact in run", name),
	}
}

// NewDownloadError wraps a failed artifact download
func NewDownloadError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeDownload,
		Message: "failed to download artifact archive",
		Err:     err,
	}
}

// NewParseError wraps an unreadable artifact archive or report
func NewParseError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeParse,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or "" if there is none
func CodeOf(err error) ErrCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

// IsRateLimited checks if the error is a rate limited error
func IsRateLimited(err error) bool {
	return CodeOf(err) == ErrCodeRateLimited
}

// IsNoRun checks if the error signals a missing grading run
func IsNoRun(err error) bool {
	return CodeOf(err) == ErrCodeNoRun
}

// IsArtifactFailure reports whether err is one of the artifact retrieval kinds
func IsArtifactFailure(err error) bool {
	switch CodeOf(err) {
	case ErrCodeArtifactListing, ErrCodeNoArtifact, ErrCodeDownload:
		return true
	}
	return false
}

// IsParseError checks if the error is a report parse error
func IsParseError(err error) bool {
	return CodeOf(err) == ErrCodeParse
}
