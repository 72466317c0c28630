package handler

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rl1809/asset-ledger/internal/auth"
	"github.com/rl1809/asset-ledger/internal/core/domain"
	"github.com/rl1809/asset-ledger/internal/core/service"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const ledgerServiceName = "ledger.v1.LedgerService"

// JSONCodec carries the ledger messages as JSON, so no generated stubs are needed.
type JSONCodec struct{}

func (JSONCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (JSONCodec) Name() string                               { return "json" }

func init() {
	encoding.RegisterCodec(JSONCodec{})
}

type PurchaseMessage struct {
	ID       string `json:"id"`
	AssetID  string `json:"assetId"`
	BaseID   string `json:"baseId"`
	Quantity int64  `json:"quantity"`
}

type TransferMessage struct {
	ID         string `json:"id"`
	AssetID    string `json:"assetId"`
	FromBaseID string `json:"fromBaseId"`
	ToBaseID   string `json:"toBaseId"`
	Quantity   int64  `json:"quantity"`
}

type AssignmentMessage struct {
	ID         string `json:"id"`
	AssetID    string `json:"assetId"`
	BaseID     string `json:"baseId"`
	AssignedTo string `json:"assignedTo"`
	Quantity   int64  `json:"quantity"`
}

type ExpenditureMessage struct {
	ID       string `json:"id"`
	AssetID  string `json:"assetId"`
	BaseID   string `json:"baseId"`
	Reason   string `json:"reason"`
	Quantity int64  `json:"quantity"`
}

type MovementReply struct {
	Movement domain.Movement `json:"movement"`
	Replayed bool            `json:"replayed"`
}

// BalancesRequest takes dates as YYYY-MM-DD; EndDate is inclusive.
type BalancesRequest struct {
	BaseID      string `json:"baseId,omitempty"`
	AssetType   string `json:"assetType,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
	GroupByBase bool   `json:"groupByBase,omitempty"`
}

type BalancesReply struct {
	Rows []domain.BalanceRow `json:"rows"`
}

type OverviewRequest struct{}

type LedgerServer interface {
	RecordPurchase(context.Context, *PurchaseMessage) (*MovementReply, error)
	RecordTransfer(context.Context, *TransferMessage) (*MovementReply, error)
	RecordAssignment(context.Context, *AssignmentMessage) (*MovementReply, error)
	RecordExpenditure(context.Context, *ExpenditureMessage) (*MovementReply, error)
	GetBalances(context.Context, *BalancesRequest) (*BalancesReply, error)
	GetOverview(context.Context, *OverviewRequest) (*domain.Overview, error)
}

func unary[Req any, Resp any](method string, call func(LedgerServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(LedgerServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ledgerServiceName + "/" + method}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(LedgerServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var LedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ledgerServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("RecordPurchase", LedgerServer.RecordPurchase),
		unary("RecordTransfer", LedgerServer.RecordTransfer),
		unary("RecordAssignment", LedgerServer.RecordAssignment),
		unary("RecordExpenditure", LedgerServer.RecordExpenditure),
		unary("GetBalances", LedgerServer.GetBalances),
		unary("GetOverview", LedgerServer.GetOverview),
	},
	Streams: []grpc.StreamDesc{},
}

type GRPCHandler struct {
	l         logrus.FieldLogger
	movements *service.MovementService
	queries   *service.QueryService
}

func NewGRPCHandler(l logrus.FieldLogger, movements *service.MovementService, queries *service.QueryService) *GRPCHandler {
	return &GRPCHandler{l: l, movements: movements, queries: queries}
}

// NewGRPCServer registers h on a server that speaks the JSON codec and authenticates every call.
func NewGRPCServer(l logrus.FieldLogger, h *GRPCHandler, tokens *auth.TokenIssuer) *grpc.Server {
	s := grpc.NewServer(
		grpc.ForceServerCodec(JSONCodec{}),
		grpc.ChainUnaryInterceptor(loggingInterceptor(l), authInterceptor(tokens)),
	)
	s.RegisterService(&LedgerServiceDesc, h)
	return s
}

func (h *GRPCHandler) RecordPurchase(ctx context.Context, req *PurchaseMessage) (*MovementReply, error) {
	rec, replayed, err := h.movements.RecordPurchase(ctx, principalFrom(ctx), service.PurchaseRequest{
		ID:       req.ID,
		AssetID:  req.AssetID,
		BaseID:   req.BaseID,
		Quantity: req.Quantity,
	})
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	return &MovementReply{Movement: rec.Movement(), Replayed: replayed}, nil
}

func (h *GRPCHandler) RecordTransfer(ctx context.Context, req *TransferMessage) (*MovementReply, error) {
	rec, replayed, err := h.movements.RecordTransfer(ctx, principalFrom(ctx), service.TransferRequest{
		ID:         req.ID,
		AssetID:    req.AssetID,
		FromBaseID: req.FromBaseID,
		ToBaseID:   req.ToBaseID,
		Quantity:   req.Quantity,
	})
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	return &MovementReply{Movement: rec.Movement(), Replayed: replayed}, nil
}

func (h *GRPCHandler) RecordAssignment(ctx context.Context, req *AssignmentMessage) (*MovementReply, error) {
	rec, replayed, err := h.movements.RecordAssignment(ctx, principalFrom(ctx), service.AssignmentRequest{
		ID:         req.ID,
		AssetID:    req.AssetID,
		BaseID:     req.BaseID,
		AssignedTo: req.AssignedTo,
		Quantity:   req.Quantity,
	})
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	return &MovementReply{Movement: rec.Movement(), Replayed: replayed}, nil
}

func (h *GRPCHandler) RecordExpenditure(ctx context.Context, req *ExpenditureMessage) (*MovementReply, error) {
	rec, replayed, err := h.movements.RecordExpenditure(ctx, principalFrom(ctx), service.ExpenditureRequest{
		ID:       req.ID,
		AssetID:  req.AssetID,
		BaseID:   req.BaseID,
		Reason:   req.Reason,
		Quantity: req.Quantity,
	})
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	return &MovementReply{Movement: rec.Movement(), Replayed: replayed}, nil
}

func (h *GRPCHandler) GetBalances(ctx context.Context, req *BalancesRequest) (*BalancesReply, error) {
	start, end, err := dateWindow(req.StartDate, req.EndDate)
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	f := domain.BalanceFilter{
		BaseID:      req.BaseID,
		AssetType:   req.AssetType,
		Start:       start,
		End:         end,
		GroupByBase: req.GroupByBase,
	}

	rows, err := h.queries.Balances(ctx, principalFrom(ctx), f)
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	return &BalancesReply{Rows: rows}, nil
}

func (h *GRPCHandler) GetOverview(ctx context.Context, _ *OverviewRequest) (*domain.Overview, error) {
	o, err := h.queries.Overview(ctx, principalFrom(ctx))
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	return &o, nil
}

func authInterceptor(tokens *auth.TokenIssuer) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get("authorization")
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}
		token := values[0]
		if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
			token = token[7:]
		}
		p, err := tokens.Parse(strings.TrimSpace(token))
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
		}
		return handler(context.WithValue(ctx, ctxPrincipal, p), req)
	}
}

func loggingInterceptor(l logrus.FieldLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		started := time.Now()
		resp, err := handler(ctx, req)
		entry := l.WithFields(logrus.Fields{
			"method":     info.FullMethod,
			"code":       status.Code(err).String(),
			"elapsed_ms": time.Since(started).Milliseconds(),
		})
		if status.Code(err) == codes.Internal {
			entry.Error("gRPC call failed.")
		} else {
			entry.Debug("gRPC call served.")
		}
		return resp, err
	}
}

// fail maps err to a status. Internal failures are logged here and reach the caller
// only as a fixed message.
func (h *GRPCHandler) fail(ctx context.Context, err error) error {
	st := grpcError(err)
	if status.Code(st) == codes.Internal {
		method, _ := grpc.Method(ctx)
		h.l.WithError(err).WithField("method", method).Error("Ledger call failed.")
	}
	return st
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, domain.ErrForbidden):
		return status.Error(codes.PermissionDenied, "forbidden")
	case errors.Is(err, domain.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, domain.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return status.Error(codes.Aborted, "conflicting update, retry with the same id")
	}
	return status.Error(codes.Internal, "internal error")
}
