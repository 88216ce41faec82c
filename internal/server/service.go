package server

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"LiquidationQueue/internal/core"
	"LiquidationQueue/internal/state"
)

const ServiceName = "liqqueue.v1.BidQueue"

// BidQueueServer is the handler type registered under ServiceName.
type BidQueueServer interface {
	SubmitBid(context.Context, *SubmitBidRequest) (*SubmitBidResponse, error)
	ExecuteLiquidation(context.Context, *ExecuteLiquidationRequest) (*core.LiquidationResult, error)
}

// BidQueueService exposes an Engine over gRPC. The sender of a mutating
// call is the authenticated caller and its block time is the server clock.
type BidQueueService struct {
	engine *core.Engine
	now    func() time.Time
}

// NewBidQueueService uses time.Now when now is nil.
func NewBidQueueService(engine *core.Engine, now func() time.Time) *BidQueueService {
	if now == nil {
		now = time.Now
	}
	return &BidQueueService{engine: engine, now: now}
}

func (s *BidQueueService) env(ctx context.Context) (core.Env, error) {
	sender, ok := CallerFromContext(ctx)
	if !ok {
		return core.Env{}, status.Error(codes.Unauthenticated, "mutating calls need an api token")
	}
	return core.Env{Sender: sender, BlockTime: uint64(s.now().Unix())}, nil
}

// ServiceDesc is written by hand; messages travel as JSON (see JSONCodec).
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BidQueueServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Instantiate", (*BidQueueService).Instantiate),
		unary("UpdateConfig", (*BidQueueService).UpdateConfig),
		unary("WhitelistCollateral", (*BidQueueService).WhitelistCollateral),
		unary("UpdateCollateralInfo", (*BidQueueService).UpdateCollateralInfo),
		unary("SubmitBid", (*BidQueueService).SubmitBid),
		unary("ActivateBids", (*BidQueueService).ActivateBids),
		unary("RetractBid", (*BidQueueService).RetractBid),
		unary("ClaimLiquidations", (*BidQueueService).ClaimLiquidations),
		unary("ConsumePool", (*BidQueueService).ConsumePool),
		unary("ExecuteLiquidation", (*BidQueueService).ExecuteLiquidation),
		unary("Config", (*BidQueueService).Config),
		unary("CollateralInfo", (*BidQueueService).CollateralInfo),
		unary("Bid", (*BidQueueService).Bid),
		unary("BidsByUser", (*BidQueueService).BidsByUser),
		unary("BidPool", (*BidQueueService).BidPool),
		unary("BidPools", (*BidQueueService).BidPools),
		unary("TotalBids", (*BidQueueService).TotalBids),
		unary("Entitlement", (*BidQueueService).Entitlement),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "liqqueue/v1/bid_queue.json",
}

func unary[Req, Resp any](name string, fn func(*BidQueueService, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	call := func(srv interface{}, ctx context.Context, req *Req) (interface{}, error) {
		resp, err := fn(srv.(*BidQueueService), ctx, req)
		if err != nil {
			return nil, toStatus(err)
		}
		return resp, nil
	}
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, status.Errorf(codes.InvalidArgument, "decode %s: %v", name, err)
			}
			if interceptor == nil {
				return call(srv, ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv, ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ============================================================================
// Admin
// ============================================================================

func (s *BidQueueService) Instantiate(ctx context.Context, req *InstantiateRequest) (*Empty, error) {
	env, err := s.env(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Instantiate(ctx, env, req.Config); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

func (s *BidQueueService) UpdateConfig(ctx context.Context, req *UpdateConfigRequest) (*Empty, error) {
	env, err := s.env(ctx)
	if err != nil {
		return nil, err
	}
	upd := core.ConfigUpdate{
		Owner:                req.Owner,
		OracleContract:       req.OracleContract,
		SafeRatio:            req.SafeRatio,
		BidFee:               req.BidFee,
		LiquidationThreshold: req.LiquidationThreshold,
		PriceTimeframe:       req.PriceTimeframe,
		WaitingPeriod:        req.WaitingPeriod,
		Liquidator:           req.Liquidator,
	}
	if err := s.engine.UpdateConfig(ctx, env, upd); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

func (s *BidQueueService) WhitelistCollateral(ctx context.Context, req *WhitelistCollateralRequest) (*Empty, error) {
	env, err := s.env(ctx)
	if err != nil {
		return nil, err
	}
	if req.CollateralToken == "" {
		return nil, status.Error(codes.InvalidArgument, "collateral_token is required")
	}
	if err := s.engine.WhitelistCollateral(ctx, env, req.CollateralToken, orZero(req.BidThreshold), req.MaxSlot); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

func (s *BidQueueService) UpdateCollateralInfo(ctx context.Context, req *UpdateCollateralInfoRequest) (*Empty, error) {
	env, err := s.env(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.engine.UpdateCollateralInfo(ctx, env, req.CollateralToken, req.BidThreshold, req.MaxSlot); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

// ============================================================================
// Bids
// ============================================================================

func (s *BidQueueService) SubmitBid(ctx context.Context, req *SubmitBidRequest) (*SubmitBidResponse, error) {
	env, err := s.env(ctx)
	if err != nil {
		return nil, err
	}
	idx, err := s.engine.SubmitBid(ctx, env, req.CollateralToken, req.PremiumSlot, orZero(req.Amount))
	if err != nil {
		return nil, err
	}
	return &SubmitBidResponse{BidIdx: idx}, nil
}

func (s *BidQueueService) ActivateBids(ctx context.Context, req *BidListRequest) (*AmountResponse, error) {
	env, err := s.env(ctx)
	if err != nil {
		return nil, err
	}
	amount, err := s.engine.ActivateBids(ctx, env, req.CollateralToken, req.BidIdxs)
	if err != nil {
		return nil, err
	}
	return &AmountResponse{Amount: amount}, nil
}

func (s *BidQueueService) RetractBid(ctx context.Context, req *RetractBidRequest) (*AmountResponse, error) {
	env, err := s.env(ctx)
	if err != nil {
		return nil, err
	}
	amount, err := s.engine.RetractBid(ctx, env, req.BidIdx, req.Amount)
	if err != nil {
		return nil, err
	}
	return &AmountResponse{Amount: amount}, nil
}

func (s *BidQueueService) ClaimLiquidations(ctx context.Context, req *BidListRequest) (*AmountResponse, error) {
	env, err := s.env(ctx)
	if err != nil {
		return nil, err
	}
	amount, err := s.engine.ClaimLiquidations(ctx, env, req.CollateralToken, req.BidIdxs)
	if err != nil {
		return nil, err
	}
	return &AmountResponse{Amount: amount}, nil
}

// ============================================================================
// Liquidation
// ============================================================================

func (s *BidQueueService) ConsumePool(ctx context.Context, req *ConsumePoolRequest) (*ConsumePoolResponse, error) {
	env, err := s.env(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.engine.ConsumePool(ctx, env, req.CollateralToken, req.PremiumSlot,
		orZeroDec(req.Fraction), orZero(req.CollateralAmount))
	if err != nil {
		return nil, err
	}
	return &ConsumePoolResponse{StableConsumed: out.StableConsumed, Rollover: out.Roll.String()}, nil
}

func (s *BidQueueService) ExecuteLiquidation(ctx context.Context, req *ExecuteLiquidationRequest) (*core.LiquidationResult, error) {
	env, err := s.env(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.ExecuteLiquidation(ctx, env, req.CollateralToken,
		orZero(req.Amount), orZeroDec(req.Price), req.PriceUpdatedAt)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ============================================================================
// Queries
// ============================================================================

func (s *BidQueueService) Config(ctx context.Context, _ *Empty) (*state.Config, error) {
	cfg, err := s.engine.Config(ctx)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *BidQueueService) CollateralInfo(ctx context.Context, req *CollateralRequest) (*state.CollateralInfo, error) {
	info, err := s.engine.CollateralInfo(ctx, req.CollateralToken)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (s *BidQueueService) Bid(ctx context.Context, req *BidRequest) (*state.Bid, error) {
	bid, err := s.engine.Bid(ctx, req.BidIdx)
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

func (s *BidQueueService) BidsByUser(ctx context.Context, req *BidsByUserRequest) (*BidsResponse, error) {
	bids, err := s.engine.BidsByUser(ctx, req.CollateralToken, req.Bidder, req.StartAfter, req.Limit)
	if err != nil {
		return nil, err
	}
	if bids == nil {
		bids = []state.Bid{}
	}
	return &BidsResponse{Bids: bids}, nil
}

func (s *BidQueueService) BidPool(ctx context.Context, req *BidPoolRequest) (*state.BidPool, error) {
	pool, err := s.engine.BidPool(ctx, req.CollateralToken, req.PremiumSlot)
	if err != nil {
		return nil, err
	}
	return &pool, nil
}

func (s *BidQueueService) BidPools(ctx context.Context, req *BidPoolsRequest) (*BidPoolsResponse, error) {
	pools, err := s.engine.BidPoolsByCollateral(ctx, req.CollateralToken, req.StartAfter, req.Limit)
	if err != nil {
		return nil, err
	}
	if pools == nil {
		pools = []state.BidPool{}
	}
	return &BidPoolsResponse{BidPools: pools}, nil
}

func (s *BidQueueService) TotalBids(ctx context.Context, req *CollateralRequest) (*AmountResponse, error) {
	total, err := s.engine.TotalBids(ctx, req.CollateralToken)
	if err != nil {
		return nil, err
	}
	return &AmountResponse{Amount: total}, nil
}

func (s *BidQueueService) Entitlement(ctx context.Context, req *BidRequest) (*core.BidEntitlement, error) {
	out, err := s.engine.Entitlement(ctx, req.BidIdx)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Omitted JSON amounts decode to a nil Int; treat them as zero so the
// engine rejects them as invalid amounts.
func orZero(i sdkmath.Int) sdkmath.Int {
	if i.IsNil() {
		return sdkmath.ZeroInt()
	}
	return i
}

func orZeroDec(d sdkmath.LegacyDec) sdkmath.LegacyDec {
	if d.IsNil() {
		return sdkmath.LegacyZeroDec()
	}
	return d
}
