package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrValidation        = errors.New("validation failed")
	ErrAnalysis          = errors.New("bill analysis failed")
	ErrDisputeGeneration = errors.New("dispute generation failed")
	ErrStorage           = errors.New("storage error")
	ErrInvalidTransition = errors.New("invalid workflow transition")
	ErrBusy              = errors.New("request already in flight")
)

// Messages shown to the user; causes stay in the logs.
const (
	MsgAnalysisFailed = "Failed to analyze the bill. Please ensure the image is clear and try again."
	MsgDisputeFailed  = "Failed to generate dispute guide. Please try again."
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// AnalysisError marks cause as an analysis failure; errors.Is matches both ErrAnalysis and cause.
func AnalysisError(cause error) error {
	return NewAppError("ANALYSIS_FAILED", "analyze bill", fmt.Errorf("%w: %w", ErrAnalysis, cause))
}

func DisputeGenerationError(cause error) error {
	return NewAppError("DISPUTE_FAILED", "generate dispute guide", fmt.Errorf("%w: %w", ErrDisputeGeneration, cause))
}

func StorageError(op string, cause error) error {
	return NewAppError("STORAGE_ERROR", op, fmt.Errorf("%w: %w", ErrStorage, cause))
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}

// ToStatus maps domain errors onto gRPC status codes.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrBusy):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, ErrAnalysis), errors.Is(err, ErrDisputeGeneration):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
