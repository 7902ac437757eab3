package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var kindCodes = map[common.Kind]codes.Code{
	common.KindValidation:   codes.InvalidArgument,
	common.KindConflict:     codes.AlreadyExists,
	common.KindUnauthorized: codes.Unauthenticated,
	common.KindForbidden:    codes.PermissionDenied,
	common.KindNotFound:     codes.NotFound,
	common.KindInternal:     codes.Internal,
}

// toStatus converts a service error into a status carrying only the public
// message. An expired access token keeps the "token expired" message so
// clients know a refresh may help.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	kind := common.KindOf(err)
	if kind == common.KindInternal {
		s.logger.Error(ctx, "request failed", "error", err)
	}
	if kind == common.KindUnauthorized && errors.Is(err, common.ErrTokenExpired) {
		return status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
	}
	return status.Error(kindCodes[kind], common.PublicMessage(err))
}
