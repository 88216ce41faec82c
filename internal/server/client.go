package server

import (
	"context"

	"google.golang.org/grpc"

	"LiquidationQueue/internal/core"
	"LiquidationQueue/internal/state"
)

// Client is a typed BidQueue client. The connection's calls are forced onto
// JSONCodec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, req interface{}) (*Resp, error) {
	out := new(Resp)
	err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, grpc.ForceCodec(JSONCodec{}))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Instantiate(ctx context.Context, req *InstantiateRequest) error {
	_, err := invoke[Empty](ctx, c.cc, "Instantiate", req)
	return err
}

func (c *Client) UpdateConfig(ctx context.Context, req *UpdateConfigRequest) error {
	_, err := invoke[Empty](ctx, c.cc, "UpdateConfig", req)
	return err
}

func (c *Client) WhitelistCollateral(ctx context.Context, req *WhitelistCollateralRequest) error {
	_, err := invoke[Empty](ctx, c.cc, "WhitelistCollateral", req)
	return err
}

func (c *Client) UpdateCollateralInfo(ctx context.Context, req *UpdateCollateralInfoRequest) error {
	_, err := invoke[Empty](ctx, c.cc, "UpdateCollateralInfo", req)
	return err
}

func (c *Client) SubmitBid(ctx context.Context, req *SubmitBidRequest) (*SubmitBidResponse, error) {
	return invoke[SubmitBidResponse](ctx, c.cc, "SubmitBid", req)
}

func (c *Client) ActivateBids(ctx context.Context, req *BidListRequest) (*AmountResponse, error) {
	return invoke[AmountResponse](ctx, c.cc, "ActivateBids", req)
}

func (c *Client) RetractBid(ctx context.Context, req *RetractBidRequest) (*AmountResponse, error) {
	return invoke[AmountResponse](ctx, c.cc, "RetractBid", req)
}

func (c *Client) ClaimLiquidations(ctx context.Context, req *BidListRequest) (*AmountResponse, error) {
	return invoke[AmountResponse](ctx, c.cc, "ClaimLiquidations", req)
}

func (c *Client) ConsumePool(ctx context.Context, req *ConsumePoolRequest) (*ConsumePoolResponse, error) {
	return invoke[ConsumePoolResponse](ctx, c.cc, "ConsumePool", req)
}

func (c *Client) ExecuteLiquidation(ctx context.Context, req *ExecuteLiquidationRequest) (*core.LiquidationResult, error) {
	return invoke[core.LiquidationResult](ctx, c.cc, "ExecuteLiquidation", req)
}

func (c *Client) Config(ctx context.Context) (*state.Config, error) {
	return invoke[state.Config](ctx, c.cc, "Config", &Empty{})
}

func (c *Client) CollateralInfo(ctx context.Context, token string) (*state.CollateralInfo, error) {
	return invoke[state.CollateralInfo](ctx, c.cc, "CollateralInfo", &CollateralRequest{CollateralToken: token})
}

func (c *Client) Bid(ctx context.Context, idx uint64) (*state.Bid, error) {
	return invoke[state.Bid](ctx, c.cc, "Bid", &BidRequest{BidIdx: idx})
}

func (c *Client) BidsByUser(ctx context.Context, req *BidsByUserRequest) (*BidsResponse, error) {
	return invoke[BidsResponse](ctx, c.cc, "BidsByUser", req)
}

func (c *Client) BidPool(ctx context.Context, token string, slot uint8) (*state.BidPool, error) {
	return invoke[state.BidPool](ctx, c.cc, "BidPool", &BidPoolRequest{CollateralToken: token, PremiumSlot: slot})
}

func (c *Client) BidPools(ctx context.Context, req *BidPoolsRequest) (*BidPoolsResponse, error) {
	return invoke[BidPoolsResponse](ctx, c.cc, "BidPools", req)
}

func (c *Client) TotalBids(ctx context.Context, token string) (*AmountResponse, error) {
	return invoke[AmountResponse](ctx, c.cc, "TotalBids", &CollateralRequest{CollateralToken: token})
}

func (c *Client) Entitlement(ctx context.Context, idx uint64) (*core.BidEntitlement, error) {
	return invoke[core.BidEntitlement](ctx, c.cc, "Entitlement", &BidRequest{BidIdx: idx})
}
