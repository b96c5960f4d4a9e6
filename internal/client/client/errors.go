package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Sadman-Ilham/opencrvs-core/internal/common"
)

var (
	ErrUnavailable = errors.New("server unavailable")
)

// RemoteError is a structured failure returned by the server, expressed
// as an HTTP-style status code and body.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.StatusCode, e.Body)
}

// Unwrap classifies the failure: 4xx is a permanent rejection, anything
// else is retried.
func (e *RemoteError) Unwrap() error {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return common.ErrPermanentRejection
	}
	return common.ErrTransientNetworkFailure
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return errors.Is(err, common.ErrTransientNetworkFailure)
}

// IsPermanent reports whether err was rejected by the server for good.
func IsPermanent(err error) bool {
	return errors.Is(err, common.ErrPermanentRejection)
}

var httpStatusByCode = map[codes.Code]int{
	codes.InvalidArgument:    http.StatusBadRequest,
	codes.FailedPrecondition: http.StatusBadRequest,
	codes.OutOfRange:         http.StatusBadRequest,
	codes.Unauthenticated:    http.StatusUnauthorized,
	codes.PermissionDenied:   http.StatusForbidden,
	codes.NotFound:           http.StatusNotFound,
	codes.AlreadyExists:      http.StatusConflict,
	codes.Aborted:            http.StatusConflict,
	codes.ResourceExhausted:  http.StatusTooManyRequests,
	codes.Unimplemented:      http.StatusNotImplemented,
	codes.Internal:           http.StatusInternalServerError,
	codes.Unknown:            http.StatusInternalServerError,
	codes.DataLoss:           http.StatusInternalServerError,
	codes.Unavailable:        http.StatusServiceUnavailable,
	codes.DeadlineExceeded:   http.StatusGatewayTimeout,
}

// mapError converts a gRPC failure into a RemoteError, or a transient
// network failure when no status came back. Cancellation is passed
// through unclassified.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %w", common.ErrTransientNetworkFailure, err)
	}
	if st.Code() == codes.Canceled {
		return fmt.Errorf("rpc cancelled: %w", context.Canceled)
	}
	code, known := httpStatusByCode[st.Code()]
	if !known {
		code = http.StatusInternalServerError
	}
	return &RemoteError{StatusCode: code, Body: st.Message()}
}
