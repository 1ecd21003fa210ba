package grpcserver

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/and161185/signflow/internal/errs"
)

var codeFor = []struct {
	err  error
	code codes.Code
}{
	{errs.ErrInvalidArgument, codes.InvalidArgument},
	{errs.ErrUnauthorized, codes.Unauthenticated},
	{errs.ErrRateLimited, codes.ResourceExhausted},
	{errs.ErrNotFound, codes.NotFound},
	{errs.ErrAlreadySigned, codes.AlreadyExists},
	{errs.ErrAlreadyExists, codes.AlreadyExists},
	{errs.ErrInvalidState, codes.FailedPrecondition},
	{errs.ErrConcurrentModification, codes.Aborted},
	{errs.ErrStorage, codes.Unavailable},
}

// toStatus maps domain sentinels to gRPC codes. Unknown errors become Internal
// without leaking their text.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	for _, m := range codeFor {
		if errors.Is(err, m.err) {
			return status.Error(m.code, err.Error())
		}
	}
	return status.Error(codes.Internal, "internal")
}

func timestampOrNil(t time.Time) *timestamppb.Timestamp {
	if t.IsZero() {
		return nil
	}
	return timestamppb.New(t)
}
