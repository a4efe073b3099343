package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/internal/scene"
)

var (
	// ErrInvalidArgument is used for client-side validation failures.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrShuttingDown is returned to streams cut short by server shutdown.
	ErrShuttingDown = errors.New("server shutting down")
)

// ToStatusError maps scene errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, scene.ErrBodyNotFound),
		errors.Is(err, core.ErrUnknownBody):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, core.ErrInvalidScene),
		errors.Is(err, core.ErrParentCycle),
		errors.Is(err, core.ErrInvalidTLE):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, scene.ErrNoFrame),
		errors.Is(err, ErrShuttingDown):
		return status.Error(codes.Unavailable, err.Error())

	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
