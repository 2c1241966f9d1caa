package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/offpay/internal/auth"
)

// captureLogs redirects the default logger for the duration of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestLoggingInterceptor(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	token, err := jwtManager.Generate("device-1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	submit := func(header string, handler connect.UnaryFunc) {
		t.Helper()
		msg, err := structpb.NewStruct(map[string]interface{}{"correlation_id": "corr-7", "type": "SENT"})
		if err != nil {
			t.Fatalf("NewStruct failed: %v", err)
		}
		req := connect.NewRequest(msg)
		if header != "" {
			req.Header().Set("Authorization", header)
		}
		chain := LoggingInterceptor()(RequireAuth(jwtManager)(handler))
		chain(context.Background(), req)
	}

	ack := func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		msg, err := structpb.NewStruct(map[string]interface{}{"receipt_id": "r-1", "duplicate": true})
		if err != nil {
			return nil, err
		}
		return connect.NewResponse(msg), nil
	}

	t.Run("accepted call logs device and correlation id", func(t *testing.T) {
		buf := captureLogs(t)
		submit("Bearer "+token, ack)

		out := buf.String()
		for _, want := range []string{"Sync call accepted", "device_id=device-1", "correlation_id=corr-7", "type=SENT", "duplicate=true"} {
			if !strings.Contains(out, want) {
				t.Errorf("log missing %q: %s", want, out)
			}
		}
	})

	t.Run("rejected token is logged as auth failure", func(t *testing.T) {
		buf := captureLogs(t)
		submit("Bearer forged", ack)

		out := buf.String()
		if !strings.Contains(out, "Device authentication failed") || !strings.Contains(out, "level=WARN") {
			t.Errorf("expected auth failure warning, got %s", out)
		}
		if !strings.Contains(out, "correlation_id=corr-7") {
			t.Errorf("expected correlation id in auth failure log, got %s", out)
		}
	})

	t.Run("handler error is logged at error level", func(t *testing.T) {
		buf := captureLogs(t)
		submit("Bearer "+token, func(context.Context, connect.AnyRequest) (connect.AnyResponse, error) {
			return nil, connect.NewError(connect.CodeInternal, errors.New("disk full"))
		})

		out := buf.String()
		if !strings.Contains(out, "Sync call failed") || !strings.Contains(out, "level=ERROR") {
			t.Errorf("expected error log, got %s", out)
		}
	})
}
