package middleware

import (
	"context"
	"log/slog"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"
)

// callInfo is filled in by inner interceptors so the logger, which runs
// outermost, can report who made the call.
type callInfo struct {
	deviceID string
}

const callInfoKey contextKey = "call_info"

// LoggingInterceptor returns a Connect interceptor that logs every sync call.
// Install it before RequireAuth so rejected devices are logged too.
func LoggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			info := &callInfo{}

			resp, err := next(context.WithValue(ctx, callInfoKey, info), req)

			attrs := []any{
				"procedure", req.Spec().Procedure,
				"peer", req.Peer().Addr,
				"device_id", info.deviceID,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			attrs = append(attrs, requestAttrs(req.Any())...)

			if err == nil {
				if msg, ok := anyMessage(resp).(*structpb.Struct); ok {
					attrs = append(attrs, "duplicate", msg.GetFields()["duplicate"].GetBoolValue())
				}
				slog.Info("Sync call accepted", attrs...)
				return resp, nil
			}

			attrs = append(attrs, "code", connect.CodeOf(err), "error", err)
			switch connect.CodeOf(err) {
			case connect.CodeUnauthenticated:
				slog.Warn("Device authentication failed", attrs...)
			case connect.CodeInvalidArgument:
				slog.Warn("Sync call rejected", attrs...)
			default:
				slog.Error("Sync call failed", attrs...)
			}
			return resp, err
		}
	}
}

// requestAttrs picks the transaction identity out of a submit message.
func requestAttrs(msg any) []any {
	s, ok := msg.(*structpb.Struct)
	if !ok {
		return nil
	}
	fields := s.GetFields()
	return []any{
		"correlation_id", fields["correlation_id"].GetStringValue(),
		"type", fields["type"].GetStringValue(),
	}
}

func anyMessage(resp connect.AnyResponse) any {
	if resp == nil {
		return nil
	}
	return resp.Any()
}
