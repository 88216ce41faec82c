package server_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"LiquidationQueue/internal/core"
	"LiquidationQueue/internal/observability"
	"LiquidationQueue/internal/server"
	"LiquidationQueue/internal/state"
	"LiquidationQueue/internal/store"
)

const (
	owner  = "owner"
	alice  = "alice"
	keeper = "keeper"
	bluna  = "bluna"

	ownerToken  = "owner-token"
	aliceToken  = "alice-token"
	keeperToken = "keeper-token"
)

// testClock is the server's block time source, in unix seconds.
type testClock struct{ unix atomic.Int64 }

func (c *testClock) now() time.Time { return time.Unix(c.unix.Load(), 0) }

type testServer struct {
	lis   *bufconn.Listener
	clock *testClock
}

// startServer serves a fresh engine over bufconn with the clock at 100.
func startServer(t *testing.T) *testServer {
	t.Helper()
	engine := core.NewEngine(store.NewMemDB(), zerolog.Nop(), nil, 64)
	clock := &testClock{}
	clock.unix.Store(100)
	srv := server.NewGRPCServer("", "", &server.ServerDeps{
		Engine: engine,
		Auth: server.NewAuthenticator(map[string]string{
			ownerToken:  owner,
			aliceToken:  alice,
			keeperToken: keeper,
		}),
		Logger: zerolog.Nop(),
		Clock:  clock.now,
	})

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Serve(ctx, lis)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &testServer{lis: lis, clock: clock}
}

// dial connects as the holder of token; an empty token dials anonymously.
func (s *testServer) dial(t *testing.T, token string) (*server.Client, *grpc.ClientConn) {
	t.Helper()
	opts := []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return s.lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if token != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(server.BearerToken(token)))
	}
	conn, err := grpc.NewClient("passthrough:///bufnet", opts...)
	assert.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return server.NewClient(conn), conn
}

func setup(t *testing.T, c *server.Client) {
	t.Helper()
	ctx := context.Background()
	assert.NoError(t, c.Instantiate(ctx, &server.InstantiateRequest{
		Config: state.Config{
			OracleContract:       "oracle",
			StableDenom:          "uusd",
			SafeRatio:            sdkmath.LegacyNewDecWithPrec(8, 1),
			BidFee:               sdkmath.LegacyNewDecWithPrec(1, 2),
			LiquidationThreshold: sdkmath.NewInt(500),
			PriceTimeframe:       60,
			WaitingPeriod:        600,
			Liquidator:           keeper,
		},
	}))
	assert.NoError(t, c.WhitelistCollateral(ctx, &server.WhitelistCollateralRequest{
		CollateralToken: bluna,
		BidThreshold:    sdkmath.NewInt(1_000_000_000),
		MaxSlot:         30,
	}))
}

func TestBidQueue_SubmitAndQuery(t *testing.T) {
	srv := startServer(t)
	admin, _ := srv.dial(t, ownerToken)
	setup(t, admin)
	c, _ := srv.dial(t, aliceToken)
	ctx := context.Background()

	resp, err := c.SubmitBid(ctx, &server.SubmitBidRequest{
		CollateralToken: bluna,
		PremiumSlot:     0,
		Amount:          sdkmath.NewInt(10_000),
	})
	assert.NoError(t, err)
	check.Equal(t, uint64(1), resp.BidIdx)

	bid, err := c.Bid(ctx, 1)
	assert.NoError(t, err)
	check.Equal(t, alice, bid.Bidder)
	check.Equal(t, "10000", bid.Amount.String())
	check.True(t, bid.IsActive())

	pool, err := c.BidPool(ctx, bluna, 0)
	assert.NoError(t, err)
	check.Equal(t, "10000", pool.TotalBidAmount.String())

	total, err := c.TotalBids(ctx, bluna)
	assert.NoError(t, err)
	check.Equal(t, "10000", total.Amount.String())

	bids, err := c.BidsByUser(ctx, &server.BidsByUserRequest{CollateralToken: bluna, Bidder: alice})
	assert.NoError(t, err)
	check.Equal(t, 1, len(bids.Bids))

	cfg, err := c.Config(ctx)
	assert.NoError(t, err)
	check.Equal(t, owner, cfg.Owner)
	check.Equal(t, "0.010000000000000000", cfg.BidFee.String())
	check.Equal(t, keeper, cfg.Liquidator)
}

func TestBidQueue_ExecuteLiquidationAndClaim(t *testing.T) {
	srv := startServer(t)
	admin, _ := srv.dial(t, ownerToken)
	setup(t, admin)
	c, _ := srv.dial(t, aliceToken)
	liquidator, _ := srv.dial(t, keeperToken)
	ctx := context.Background()

	_, err := c.SubmitBid(ctx, &server.SubmitBidRequest{
		CollateralToken: bluna,
		Amount:          sdkmath.NewInt(10_000),
	})
	assert.NoError(t, err)

	res, err := liquidator.ExecuteLiquidation(ctx, &server.ExecuteLiquidationRequest{
		CollateralToken: bluna,
		Amount:          sdkmath.NewInt(10),
		Price:           sdkmath.LegacyNewDec(10),
		PriceUpdatedAt:  100,
	})
	assert.NoError(t, err)
	check.Equal(t, "100", res.StableConsumed.String())
	check.Equal(t, "1", res.BidFee.String())
	check.Equal(t, "99", res.RepayAmount.String())

	ent, err := c.Entitlement(ctx, 1)
	assert.NoError(t, err)
	check.Equal(t, "10", ent.Collateral.String())
	check.Equal(t, "9900", ent.Residual.String())

	srv.clock.unix.Store(200)
	claimed, err := c.ClaimLiquidations(ctx, &server.BidListRequest{
		CollateralToken: bluna,
	})
	assert.NoError(t, err)
	check.Equal(t, "10", claimed.Amount.String())
}

func TestBidQueue_ErrorCodes(t *testing.T) {
	srv := startServer(t)
	admin, _ := srv.dial(t, ownerToken)
	setup(t, admin)
	c, _ := srv.dial(t, aliceToken)
	ctx := context.Background()

	owner2 := "mallory"
	err := c.UpdateConfig(ctx, &server.UpdateConfigRequest{Owner: &owner2})
	check.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = c.Bid(ctx, 42)
	check.Equal(t, codes.NotFound, status.Code(err))

	_, err = c.SubmitBid(ctx, &server.SubmitBidRequest{
		CollateralToken: bluna,
		PremiumSlot:     30,
		Amount:          sdkmath.NewInt(1),
	})
	check.Equal(t, codes.InvalidArgument, status.Code(err))

	// Amount omitted on the wire.
	_, err = c.SubmitBid(ctx, &server.SubmitBidRequest{
		CollateralToken: bluna,
	})
	check.Equal(t, codes.InvalidArgument, status.Code(err))

	srv.clock.unix.Store(1000)
	_, err = admin.ExecuteLiquidation(ctx, &server.ExecuteLiquidationRequest{
		CollateralToken: bluna,
		Amount:          sdkmath.NewInt(10),
		Price:           sdkmath.LegacyNewDec(10),
		PriceUpdatedAt:  100,
	})
	check.Equal(t, codes.FailedPrecondition, status.Code(err))

	err = admin.Instantiate(ctx, &server.InstantiateRequest{})
	check.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestBidQueue_SenderComesFromToken(t *testing.T) {
	srv := startServer(t)
	admin, _ := srv.dial(t, ownerToken)
	setup(t, admin)
	_, aliceConn := srv.dial(t, aliceToken)
	_, anonConn := srv.dial(t, "")
	ctx := context.Background()

	// a body claiming to come from the owner is ignored
	spoofed := map[string]any{
		"env":   map[string]any{"sender": owner, "block_time": 0},
		"owner": "mallory",
	}
	update := "/" + server.ServiceName + "/UpdateConfig"
	err := aliceConn.Invoke(ctx, update, spoofed, &server.Empty{}, grpc.ForceCodec(server.JSONCodec{}))
	check.Equal(t, codes.PermissionDenied, status.Code(err))

	err = anonConn.Invoke(ctx, update, spoofed, &server.Empty{}, grpc.ForceCodec(server.JSONCodec{}))
	check.Equal(t, codes.Unauthenticated, status.Code(err))

	liquidate := map[string]any{
		"env":              map[string]any{"sender": keeper, "block_time": 100},
		"collateral_token": bluna,
		"amount":           "10",
		"price":            "1",
		"price_updated_at": 100,
	}
	err = aliceConn.Invoke(ctx, "/"+server.ServiceName+"/ExecuteLiquidation", liquidate,
		&core.LiquidationResult{}, grpc.ForceCodec(server.JSONCodec{}))
	check.Equal(t, codes.PermissionDenied, status.Code(err))

	cfg, err := server.NewClient(anonConn).Config(ctx)
	assert.NoError(t, err)
	check.Equal(t, owner, cfg.Owner)
}

func TestBidQueue_BlockTimeComesFromServerClock(t *testing.T) {
	srv := startServer(t)
	admin, _ := srv.dial(t, ownerToken)
	setup(t, admin)
	c, aliceConn := srv.dial(t, aliceToken)
	ctx := context.Background()

	assert.NoError(t, admin.WhitelistCollateral(ctx, &server.WhitelistCollateralRequest{
		CollateralToken: "beth",
		BidThreshold:    sdkmath.ZeroInt(),
		MaxSlot:         10,
	}))
	resp, err := c.SubmitBid(ctx, &server.SubmitBidRequest{
		CollateralToken: "beth",
		Amount:          sdkmath.NewInt(100),
	})
	assert.NoError(t, err)

	activate := map[string]any{
		"env":              map[string]any{"sender": alice, "block_time": 10_000},
		"collateral_token": "beth",
		"bid_idxs":         []uint64{resp.BidIdx},
	}
	err = aliceConn.Invoke(ctx, "/"+server.ServiceName+"/ActivateBids", activate,
		&server.AmountResponse{}, grpc.ForceCodec(server.JSONCodec{}))
	check.Equal(t, codes.FailedPrecondition, status.Code(err))

	srv.clock.unix.Store(700)
	activated, err := c.ActivateBids(ctx, &server.BidListRequest{
		CollateralToken: "beth",
		BidIdxs:         []uint64{resp.BidIdx},
	})
	assert.NoError(t, err)
	check.Equal(t, "100", activated.Amount.String())
}

func TestBidQueue_UnknownTokenRejected(t *testing.T) {
	srv := startServer(t)
	c, _ := srv.dial(t, "stolen")

	_, err := c.Config(context.Background())
	check.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestBidQueue_HealthUsesProtobuf(t *testing.T) {
	srv := startServer(t)
	_, conn := srv.dial(t, "")

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: server.ServiceName})
	assert.NoError(t, err)
	check.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestHTTP_HealthEndpoints(t *testing.T) {
	hc := observability.NewHealthChecker()
	srv := server.NewGRPCServer("", "", &server.ServerDeps{
		Engine:        core.NewEngine(store.NewMemDB(), zerolog.Nop(), nil, 8),
		HealthChecker: hc,
		Logger:        zerolog.Nop(),
	})
	h := srv.HTTPHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	check.Equal(t, http.StatusServiceUnavailable, rec.Code)

	hc.SetReady(true)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	check.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	check.Equal(t, http.StatusOK, rec.Code)
}
