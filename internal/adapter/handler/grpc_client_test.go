package handler

import (
	"context"

	"github.com/rl1809/asset-ledger/internal/core/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// LedgerClient calls LedgerService the way an external caller would, over the JSON codec.
type LedgerClient struct {
	cc    grpc.ClientConnInterface
	token string
}

func NewLedgerClient(cc grpc.ClientConnInterface, token string) *LedgerClient {
	return &LedgerClient{cc: cc, token: token}
}

// CodecOption makes a client connection use the JSON codec.
func CodecOption() grpc.DialOption {
	return grpc.WithDefaultCallOptions(grpc.ForceCodec(JSONCodec{}))
}

func (c *LedgerClient) invoke(ctx context.Context, method string, in, out interface{}) error {
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	return c.cc.Invoke(ctx, "/"+ledgerServiceName+"/"+method, in, out)
}

func (c *LedgerClient) RecordPurchase(ctx context.Context, in *PurchaseMessage) (*MovementReply, error) {
	out := new(MovementReply)
	return out, c.invoke(ctx, "RecordPurchase", in, out)
}

func (c *LedgerClient) RecordTransfer(ctx context.Context, in *TransferMessage) (*MovementReply, error) {
	out := new(MovementReply)
	return out, c.invoke(ctx, "RecordTransfer", in, out)
}

func (c *LedgerClient) RecordAssignment(ctx context.Context, in *AssignmentMessage) (*MovementReply, error) {
	out := new(MovementReply)
	return out, c.invoke(ctx, "RecordAssignment", in, out)
}

func (c *LedgerClient) RecordExpenditure(ctx context.Context, in *ExpenditureMessage) (*MovementReply, error) {
	out := new(MovementReply)
	return out, c.invoke(ctx, "RecordExpenditure", in, out)
}

func (c *LedgerClient) GetBalances(ctx context.Context, in *BalancesRequest) (*BalancesReply, error) {
	out := new(BalancesReply)
	return out, c.invoke(ctx, "GetBalances", in, out)
}

func (c *LedgerClient) GetOverview(ctx context.Context) (*domain.Overview, error) {
	out := new(domain.Overview)
	return out, c.invoke(ctx, "GetOverview", &OverviewRequest{}, out)
}
