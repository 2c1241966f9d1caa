package syncrpc

import (
	"context"
	"fmt"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/offpay/internal/auth"
	"github.com/mmynk/offpay/internal/models"
	"github.com/mmynk/offpay/internal/reconcile"
)

// Client submits ledger records to the sync server. It implements
// reconcile.Remote.
type Client struct {
	client   *connect.Client[structpb.Struct, structpb.Struct]
	tokens   *auth.JWTManager
	deviceID string
}

var _ reconcile.Remote = (*Client)(nil)

// NewClient creates a client for the server at baseURL. Each call carries a
// fresh device token issued by tokens for deviceID.
func NewClient(httpClient connect.HTTPClient, baseURL string, tokens *auth.JWTManager, deviceID string, opts ...connect.ClientOption) *Client {
	return &Client{
		client: connect.NewClient[structpb.Struct, structpb.Struct](
			httpClient,
			strings.TrimRight(baseURL, "/")+SubmitProcedure,
			opts...,
		),
		tokens:   tokens,
		deviceID: deviceID,
	}
}

// Submit sends tx and returns the server's acknowledgment.
func (c *Client) Submit(ctx context.Context, tx *models.Transaction) (*reconcile.Ack, error) {
	msg, err := newSubmitRequest(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	token, err := c.tokens.Generate(c.deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue device token: %w", err)
	}

	req := connect.NewRequest(msg)
	req.Header().Set("Authorization", "Bearer "+token)

	resp, err := c.client.CallUnary(ctx, req)
	if err != nil {
		return nil, err
	}

	fields := resp.Msg.GetFields()
	receiptID := fields[fieldReceiptID].GetStringValue()
	if receiptID == "" {
		return nil, ErrEmptyReceipt
	}

	return &reconcile.Ack{
		ReceiptID: receiptID,
		Duplicate: fields[fieldDuplicate].GetBoolValue(),
	}, nil
}
