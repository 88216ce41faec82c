package server

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"LiquidationQueue/internal/state"
)

// toStatus maps queue errors onto gRPC status codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codeFor(err), err.Error())
}

func codeFor(err error) codes.Code {
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, state.ErrUnauthorized):
		return codes.PermissionDenied
	case errors.Is(err, state.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, state.ErrCorruptedKey):
		return codes.DataLoss
	case errors.Is(err, state.ErrInsufficientFunds),
		errors.Is(err, state.ErrWaitPeriod),
		errors.Is(err, state.ErrStalePrice),
		errors.Is(err, state.ErrAlreadyInitialized),
		errors.Is(err, state.ErrAlreadyWhitelisted),
		errors.Is(err, state.ErrAlreadyActive):
		return codes.FailedPrecondition
	case state.IsCallerError(err):
		return codes.InvalidArgument
	default:
		return codes.Internal
	}
}
