package core_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/rs/zerolog"

	"LiquidationQueue/internal/core"
	"LiquidationQueue/internal/event"
	"LiquidationQueue/internal/state"
	"LiquidationQueue/internal/store"
)

// --- Test helpers ---

const (
	owner = "owner"
	alice = "alice"
	bob   = "bob"

	bluna = "bluna" // bids enter the pool immediately
	beth  = "beth"  // bids wait WaitingPeriod
)

type recordingSink struct {
	mu     sync.Mutex
	events []event.QueueEvent
}

func (s *recordingSink) Publish(evt event.QueueEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

func (s *recordingSink) types() []event.QueueEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.QueueEventType, len(s.events))
	for i, evt := range s.events {
		out[i] = evt.Type
	}
	return out
}

func testConfig() state.Config {
	return state.Config{
		OracleContract:       "oracle",
		StableDenom:          "uusd",
		SafeRatio:            sdkmath.LegacyNewDecWithPrec(8, 1),
		BidFee:               sdkmath.LegacyNewDecWithPrec(1, 2),
		LiquidationThreshold: sdkmath.NewInt(500),
		PriceTimeframe:       60,
		WaitingPeriod:        600,
	}
}

// newTestEngineOn returns an instantiated engine over db with bluna and beth
// whitelisted.
func newTestEngineOn(t *testing.T, db store.DB) *core.Engine {
	t.Helper()
	e := core.NewEngine(db, zerolog.Nop(), nil, 128)
	ctx := context.Background()
	assert.NoError(t, e.Instantiate(ctx, env(owner, 0), testConfig()))
	assert.NoError(t, e.WhitelistCollateral(ctx, env(owner, 0), bluna, sdkmath.NewInt(1_000_000_000_000), 30))
	assert.NoError(t, e.WhitelistCollateral(ctx, env(owner, 0), beth, sdkmath.ZeroInt(), 10))
	return e
}

func newTestEngine(t *testing.T) *core.Engine {
	return newTestEngineOn(t, store.NewMemDB())
}

func env(sender string, blockTime uint64) core.Env {
	return core.Env{Sender: sender, BlockTime: blockTime}
}

func mustSubmit(t *testing.T, e *core.Engine, sender, collateral string, slot uint8, amount int64) uint64 {
	t.Helper()
	idx, err := e.SubmitBid(context.Background(), env(sender, 100), collateral, slot, sdkmath.NewInt(amount))
	assert.NoError(t, err)
	return idx
}

func mustConsume(t *testing.T, e *core.Engine, slot uint8, fraction string, collateral int64) core.Consumption {
	t.Helper()
	out, err := e.ConsumePool(context.Background(), env(owner, 100), bluna, slot,
		sdkmath.LegacyMustNewDecFromStr(fraction), sdkmath.NewInt(collateral))
	assert.NoError(t, err)
	return out
}

func intPtr(v int64) *sdkmath.Int {
	i := sdkmath.NewInt(v)
	return &i
}

// ============================================================================
// Config and collateral registry
// ============================================================================

func TestInstantiate_Once(t *testing.T) {
	e := newTestEngine(t)
	err := e.Instantiate(context.Background(), env(owner, 0), testConfig())
	check.True(t, errors.Is(err, state.ErrAlreadyInitialized))

	cfg, err := e.Config(context.Background())
	check.NoError(t, err)
	check.Equal(t, owner, cfg.Owner)
}

func TestConfig_NotFoundBeforeInstantiate(t *testing.T) {
	e := core.NewEngine(store.NewMemDB(), zerolog.Nop(), nil, 8)
	_, err := e.Config(context.Background())
	check.True(t, errors.Is(err, state.ErrConfigNotFound))
}

func TestUpdateConfig_OwnerOnly(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	period := uint64(30)

	err := e.UpdateConfig(ctx, env(alice, 0), core.ConfigUpdate{WaitingPeriod: &period})
	check.True(t, errors.Is(err, state.ErrUnauthorized))

	assert.NoError(t, e.UpdateConfig(ctx, env(owner, 0), core.ConfigUpdate{WaitingPeriod: &period}))
	cfg, err := e.Config(ctx)
	check.NoError(t, err)
	check.Equal(t, uint64(30), cfg.WaitingPeriod)

	bad := sdkmath.LegacyNewDec(2)
	err = e.UpdateConfig(ctx, env(owner, 0), core.ConfigUpdate{SafeRatio: &bad})
	check.True(t, errors.Is(err, state.ErrInvalidConfig))
}

func TestWhitelistCollateral_Validation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	err := e.WhitelistCollateral(ctx, env(alice, 0), "batom", sdkmath.ZeroInt(), 10)
	check.True(t, errors.Is(err, state.ErrUnauthorized))

	err = e.WhitelistCollateral(ctx, env(owner, 0), bluna, sdkmath.ZeroInt(), 10)
	check.True(t, errors.Is(err, state.ErrAlreadyWhitelisted))

	err = e.WhitelistCollateral(ctx, env(owner, 0), "batom", sdkmath.ZeroInt(), 0)
	check.True(t, errors.Is(err, state.ErrInvalidMaxSlot))

	err = e.WhitelistCollateral(ctx, env(owner, 0), "batom", sdkmath.ZeroInt(), 31)
	check.True(t, errors.Is(err, state.ErrInvalidMaxSlot))

	_, err = e.CollateralInfo(ctx, "batom")
	check.True(t, errors.Is(err, state.ErrNotWhitelisted))
}

func TestUpdateCollateralInfo(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	maxSlot := uint8(5)

	err := e.UpdateCollateralInfo(ctx, env(alice, 0), bluna, nil, &maxSlot)
	check.True(t, errors.Is(err, state.ErrUnauthorized))

	assert.NoError(t, e.UpdateCollateralInfo(ctx, env(owner, 0), bluna, intPtr(7), &maxSlot))
	info, err := e.CollateralInfo(ctx, bluna)
	check.NoError(t, err)
	check.Equal(t, uint8(5), info.MaxSlot)
	check.Equal(t, "7", info.BidThreshold.String())

	_, err = e.SubmitBid(ctx, env(alice, 0), bluna, 5, sdkmath.NewInt(10))
	check.True(t, errors.Is(err, state.ErrInvalidSlot))
}

// ============================================================================
// Bid submission and activation
// ============================================================================

func TestSubmitBid_Validation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.SubmitBid(ctx, env(alice, 0), "unknown", 0, sdkmath.NewInt(10))
	check.True(t, errors.Is(err, state.ErrNotWhitelisted))

	_, err = e.SubmitBid(ctx, env(alice, 0), bluna, 30, sdkmath.NewInt(10))
	check.True(t, errors.Is(err, state.ErrInvalidSlot))

	_, err = e.SubmitBid(ctx, env(alice, 0), bluna, 0, sdkmath.ZeroInt())
	check.True(t, errors.Is(err, state.ErrInvalidAmount))
}

func TestSubmitBid_BelowThresholdIsActive(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	idx := mustSubmit(t, e, alice, bluna, 2, 100)
	check.Equal(t, uint64(1), idx)

	bid, err := e.Bid(ctx, idx)
	check.NoError(t, err)
	check.True(t, bid.IsActive())

	pool, err := e.BidPool(ctx, bluna, 2)
	check.NoError(t, err)
	check.Equal(t, "100", pool.TotalBidAmount.String())
	check.Equal(t, "0.020000000000000000", pool.PremiumRate.String())

	total, err := e.TotalBids(ctx, bluna)
	check.NoError(t, err)
	check.Equal(t, "100", total.String())
}

func TestActivateBids_WaitPeriod(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	idx := mustSubmit(t, e, alice, beth, 1, 100)
	bid, err := e.Bid(ctx, idx)
	check.NoError(t, err)
	check.False(t, bid.IsActive())
	check.Equal(t, uint64(700), *bid.WaitEnd)

	// pending bids are not in the pool
	_, err = e.BidPool(ctx, beth, 1)
	check.True(t, errors.Is(err, state.ErrPoolNotFound))

	_, err = e.ActivateBids(ctx, env(alice, 699), beth, []uint64{idx})
	check.True(t, errors.Is(err, state.ErrWaitPeriod))

	_, err = e.ActivateBids(ctx, env(bob, 700), beth, []uint64{idx})
	check.True(t, errors.Is(err, state.ErrUnauthorized))

	amount, err := e.ActivateBids(ctx, env(alice, 700), beth, []uint64{idx})
	check.NoError(t, err)
	check.Equal(t, "100", amount.String())

	pool, err := e.BidPool(ctx, beth, 1)
	check.NoError(t, err)
	check.Equal(t, "100", pool.TotalBidAmount.String())

	_, err = e.ActivateBids(ctx, env(alice, 800), beth, []uint64{idx})
	check.True(t, errors.Is(err, state.ErrAlreadyActive))
}

func TestActivateBids_EmptyListActivatesReadyBids(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	first := mustSubmit(t, e, alice, beth, 1, 100)
	second := mustSubmit(t, e, alice, beth, 3, 50)
	_, err := e.SubmitBid(ctx, env(alice, 500), beth, 1, sdkmath.NewInt(25))
	check.NoError(t, err)

	amount, err := e.ActivateBids(ctx, env(alice, 700), beth, nil)
	check.NoError(t, err)
	check.Equal(t, "150", amount.String())

	for _, idx := range []uint64{first, second} {
		bid, err := e.Bid(ctx, idx)
		check.NoError(t, err)
		check.True(t, bid.IsActive())
	}
	total, err := e.TotalBids(ctx, beth)
	check.NoError(t, err)
	check.Equal(t, "150", total.String())
}

func TestBidsByUser_Paginates(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		mustSubmit(t, e, alice, bluna, 0, 10)
	}
	mustSubmit(t, e, bob, bluna, 0, 10)

	page, err := e.BidsByUser(ctx, bluna, alice, nil, 0)
	check.NoError(t, err)
	check.Equal(t, state.DefaultLimit, len(page))

	cursor := page[len(page)-1].Idx
	page, err = e.BidsByUser(ctx, bluna, alice, &cursor, 0)
	check.NoError(t, err)
	check.Equal(t, 2, len(page))
	check.Equal(t, uint64(12), page[1].Idx)
}

// ============================================================================
// Scenarios A and B through the engine
// ============================================================================

func TestScenarioA_PartialLiquidation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	idx := mustSubmit(t, e, alice, bluna, 0, 100)

	mustConsume(t, e, 0, "0.5", 10)

	ent, err := e.Entitlement(ctx, idx)
	check.NoError(t, err)
	check.Equal(t, "50", ent.Residual.String())
	check.Equal(t, "10", ent.Collateral.String())

	claimed, err := e.ClaimLiquidations(ctx, env(alice, 200), bluna, nil)
	check.NoError(t, err)
	check.Equal(t, "10", claimed.String())

	bid, err := e.Bid(ctx, idx)
	check.NoError(t, err)
	check.Equal(t, "50", bid.Amount.String())

	// a second claim has nothing left
	claimed, err = e.ClaimLiquidations(ctx, env(alice, 200), bluna, nil)
	check.NoError(t, err)
	check.Equal(t, "0", claimed.String())
}

func TestScenarioB_DrainAndClaim(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	idx := mustSubmit(t, e, alice, bluna, 0, 100)

	mustConsume(t, e, 0, "0.5", 10)
	out := mustConsume(t, e, 0, "1", 20)
	check.Equal(t, core.RollEpoch, out.Roll)

	pool, err := e.BidPool(ctx, bluna, 0)
	check.NoError(t, err)
	check.Equal(t, uint64(1), pool.CurrentEpoch)
	check.True(t, pool.TotalBidAmount.IsZero())

	ent, err := e.Entitlement(ctx, idx)
	check.NoError(t, err)
	check.Equal(t, "0", ent.Residual.String())
	check.Equal(t, "30", ent.Collateral.String())

	claimed, err := e.ClaimLiquidations(ctx, env(alice, 200), bluna, []uint64{idx})
	check.NoError(t, err)
	check.Equal(t, "30", claimed.String())

	_, err = e.Bid(ctx, idx)
	check.True(t, errors.Is(err, state.ErrNoSuchBid))

	total, err := e.TotalBids(ctx, bluna)
	check.NoError(t, err)
	check.Equal(t, "0", total.String())
}

func TestConsumePool_Errors(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.ConsumePool(ctx, env(owner, 0), bluna, 4, sdkmath.LegacyOneDec(), sdkmath.NewInt(1))
	check.True(t, errors.Is(err, state.ErrPoolNotFound))

	mustSubmit(t, e, alice, bluna, 4, 100)
	_, err = e.ConsumePool(ctx, env(owner, 0), bluna, 4, sdkmath.LegacyZeroDec(), sdkmath.NewInt(1))
	check.True(t, errors.Is(err, state.ErrInvalidFraction))

	_, err = e.ConsumePool(ctx, env(owner, 0), bluna, 4, sdkmath.LegacyNewDec(2), sdkmath.NewInt(1))
	check.True(t, errors.Is(err, state.ErrInsufficientFunds))
}

// ============================================================================
// Retraction
// ============================================================================

func TestRetractBid_OwnerOnly(t *testing.T) {
	e := newTestEngine(t)
	idx := mustSubmit(t, e, alice, bluna, 0, 100)

	_, err := e.RetractBid(context.Background(), env(bob, 0), idx, nil)
	check.True(t, errors.Is(err, state.ErrUnauthorized))
}

func TestRetractBid_ActivePartialThenFull(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	idx := mustSubmit(t, e, alice, bluna, 0, 100)
	mustConsume(t, e, 0, "0.5", 10)

	_, err := e.RetractBid(ctx, env(alice, 0), idx, intPtr(51))
	check.True(t, errors.Is(err, state.ErrInsufficientFunds))

	withdrawn, err := e.RetractBid(ctx, env(alice, 0), idx, intPtr(20))
	check.NoError(t, err)
	check.Equal(t, "20", withdrawn.String())

	bid, err := e.Bid(ctx, idx)
	check.NoError(t, err)
	check.Equal(t, "30", bid.Amount.String())
	check.Equal(t, "10", bid.PendingLiquidatedCollateral.String())

	pool, err := e.BidPool(ctx, bluna, 0)
	check.NoError(t, err)
	check.Equal(t, "30", pool.TotalBidAmount.String())

	withdrawn, err = e.RetractBid(ctx, env(alice, 0), idx, nil)
	check.NoError(t, err)
	check.Equal(t, "30", withdrawn.String())

	// the earned collateral keeps the bid alive until it is claimed
	ent, err := e.Entitlement(ctx, idx)
	check.NoError(t, err)
	check.Equal(t, "0", ent.Residual.String())
	check.Equal(t, "10", ent.Collateral.String())

	claimed, err := e.ClaimLiquidations(ctx, env(alice, 0), bluna, nil)
	check.NoError(t, err)
	check.Equal(t, "10", claimed.String())
	_, err = e.Bid(ctx, idx)
	check.True(t, errors.Is(err, state.ErrNoSuchBid))
}

func TestRetractBid_Pending(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	idx := mustSubmit(t, e, alice, beth, 0, 100)

	withdrawn, err := e.RetractBid(ctx, env(alice, 0), idx, intPtr(40))
	check.NoError(t, err)
	check.Equal(t, "40", withdrawn.String())

	bid, err := e.Bid(ctx, idx)
	check.NoError(t, err)
	check.Equal(t, "60", bid.Amount.String())

	_, err = e.RetractBid(ctx, env(alice, 0), idx, nil)
	check.NoError(t, err)
	_, err = e.Bid(ctx, idx)
	check.True(t, errors.Is(err, state.ErrNoSuchBid))

	bids, err := e.BidsByUser(ctx, beth, alice, nil, 0)
	check.NoError(t, err)
	check.Equal(t, 0, len(bids))
}

// ============================================================================
// Liquidation execution
// ============================================================================

func TestExecuteLiquidation_WalksSlotsInPremiumOrder(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	mustSubmit(t, e, alice, bluna, 5, 1000)
	mustSubmit(t, e, bob, bluna, 0, 100)

	res, err := e.ExecuteLiquidation(ctx, env(owner, 1000), bluna, sdkmath.NewInt(150), sdkmath.LegacyOneDec(), 1000)
	assert.NoError(t, err)

	check.Equal(t, 2, len(res.Fills))
	check.Equal(t, uint8(0), res.Fills[0].Slot)
	check.Equal(t, "100", res.Fills[0].Collateral.String())
	check.Equal(t, "100", res.Fills[0].StableConsumed.String())
	check.Equal(t, uint8(5), res.Fills[1].Slot)
	check.Equal(t, "50", res.Fills[1].Collateral.String())
	check.Equal(t, "47", res.Fills[1].StableConsumed.String())

	check.Equal(t, "147", res.StableConsumed.String())
	check.Equal(t, "1", res.BidFee.String())
	check.Equal(t, "146", res.RepayAmount.String())

	total, err := e.TotalBids(ctx, bluna)
	check.NoError(t, err)
	check.Equal(t, "953", total.String())
}

func TestExecuteLiquidation_StalePrice(t *testing.T) {
	e := newTestEngine(t)
	mustSubmit(t, e, alice, bluna, 0, 100)

	_, err := e.ExecuteLiquidation(context.Background(), env(owner, 1000), bluna, sdkmath.NewInt(10), sdkmath.LegacyOneDec(), 939)
	check.True(t, errors.Is(err, state.ErrStalePrice))
}

func TestExecuteLiquidation_InsufficientBidsRollsBack(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	mustSubmit(t, e, alice, bluna, 0, 100)

	_, err := e.ExecuteLiquidation(ctx, env(owner, 1000), bluna, sdkmath.NewInt(10_000), sdkmath.LegacyOneDec(), 1000)
	check.True(t, errors.Is(err, state.ErrInsufficientFunds))

	pool, err := e.BidPool(ctx, bluna, 0)
	check.NoError(t, err)
	check.Equal(t, "100", pool.TotalBidAmount.String())
	check.Equal(t, uint64(0), pool.CurrentEpoch)
}

// ============================================================================
// Command deduplication and events
// ============================================================================

func TestApply_DuplicateCommandAppliesOnce(t *testing.T) {
	db := store.NewMemDB()
	e := newTestEngineOn(t, db)
	ctx := context.Background()
	mustSubmit(t, e, alice, bluna, 0, 100)

	cmd := &event.ConsumePool{
		Header:           event.Header{ID: uuid.New(), Sender: owner, Time: 100},
		Collateral:       bluna,
		Slot:             0,
		Fraction:         sdkmath.LegacyNewDecWithPrec(5, 1),
		CollateralAmount: sdkmath.NewInt(10),
	}

	res, err := e.Apply(ctx, cmd)
	check.NoError(t, err)
	check.False(t, res.Duplicate)

	res, err = e.Apply(ctx, cmd)
	check.NoError(t, err)
	check.True(t, res.Duplicate)

	// a restarted engine has an empty LRU and falls back to the store marker
	restarted := core.NewEngine(db, zerolog.Nop(), nil, 128)
	res, err = restarted.Apply(ctx, cmd)
	check.NoError(t, err)
	check.True(t, res.Duplicate)

	pool, err := e.BidPool(ctx, bluna, 0)
	check.NoError(t, err)
	check.Equal(t, "50", pool.TotalBidAmount.String())
}

func TestApply_RejectedCommandCanBeRetried(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	cmd := &event.SubmitBid{
		Header:     event.Header{ID: uuid.New(), Sender: alice, Time: 100},
		Collateral: "unknown",
		Slot:       0,
		Amount:     sdkmath.NewInt(10),
	}
	_, err := e.Apply(ctx, cmd)
	check.True(t, errors.Is(err, state.ErrNotWhitelisted))

	cmd.Collateral = bluna
	res, err := e.Apply(ctx, cmd)
	check.NoError(t, err)
	check.False(t, res.Duplicate)
	check.Equal(t, uint64(1), res.Value.(uint64))
}

func TestEvents_PublishedAfterCommitOnly(t *testing.T) {
	e := newTestEngine(t)
	sink := &recordingSink{}
	e.SetEventSink(sink)
	ctx := context.Background()

	mustSubmit(t, e, alice, bluna, 0, 100)
	mustConsume(t, e, 0, "1", 20)
	_, err := e.ConsumePool(ctx, env(owner, 0), bluna, 0, sdkmath.LegacyOneDec(), sdkmath.NewInt(1))
	check.True(t, errors.Is(err, state.ErrInsufficientFunds))

	check.Equal(t, []event.QueueEventType{
		event.QueueEventBidSubmitted,
		event.QueueEventPoolConsumed,
		event.QueueEventPoolRolledOver,
	}, sink.types())
}

// ============================================================================
// Repeated indexes, dust pools and access control
// ============================================================================

func TestClaimLiquidations_RepeatedIdxPaysOnce(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	idx := mustSubmit(t, e, alice, bluna, 5, 100)
	mustConsume(t, e, 5, "0.5", 10)

	claimed, err := e.ClaimLiquidations(ctx, env(alice, 200), bluna, []uint64{idx, idx, idx})
	check.NoError(t, err)
	check.Equal(t, "10", claimed.String())

	bid, err := e.Bid(ctx, idx)
	check.NoError(t, err)
	check.Equal(t, "50", bid.Amount.String())

	claimed, err = e.ClaimLiquidations(ctx, env(alice, 200), bluna, []uint64{idx})
	check.NoError(t, err)
	check.Equal(t, "0", claimed.String())
}

func TestActivateBids_RepeatedIdxDepositsOnce(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	idx := mustSubmit(t, e, alice, beth, 3, 100)

	amount, err := e.ActivateBids(ctx, env(alice, 700), beth, []uint64{idx, idx})
	check.NoError(t, err)
	check.Equal(t, "100", amount.String())

	pool, err := e.BidPool(ctx, beth, 3)
	check.NoError(t, err)
	check.Equal(t, "100", pool.TotalBidAmount.String())

	total, err := e.TotalBids(ctx, beth)
	check.NoError(t, err)
	check.Equal(t, "100", total.String())
}

func TestExecuteLiquidation_SkipsDustPool(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	dust := mustSubmit(t, e, alice, bluna, 0, 5)
	mustSubmit(t, e, bob, bluna, 1, 10_000)

	res, err := e.ExecuteLiquidation(ctx, env(owner, 1000), bluna, sdkmath.NewInt(10), sdkmath.LegacyNewDec(10), 1000)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(res.Fills))
	check.Equal(t, uint8(1), res.Fills[0].Slot)
	check.Equal(t, "10", res.Fills[0].Collateral.String())

	pool, err := e.BidPool(ctx, bluna, 0)
	check.NoError(t, err)
	check.Equal(t, "5", pool.TotalBidAmount.String())
	check.Equal(t, uint64(0), pool.CurrentEpoch)

	ent, err := e.Entitlement(ctx, dust)
	check.NoError(t, err)
	check.Equal(t, "5", ent.Residual.String())
	check.Equal(t, "0", ent.Collateral.String())
}

func TestLiquidationCalls_RequireOwnerOrLiquidator(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	mustSubmit(t, e, bob, bluna, 0, 1000)

	_, err := e.ConsumePool(ctx, env(alice, 100), bluna, 0, sdkmath.LegacyNewDecWithPrec(5, 1), sdkmath.NewInt(1))
	check.True(t, errors.Is(err, state.ErrUnauthorized))
	_, err = e.ExecuteLiquidation(ctx, env(alice, 1000), bluna, sdkmath.NewInt(10), sdkmath.LegacyOneDec(), 1000)
	check.True(t, errors.Is(err, state.ErrUnauthorized))

	keeper := "keeper"
	assert.NoError(t, e.UpdateConfig(ctx, env(owner, 0), core.ConfigUpdate{Liquidator: &keeper}))

	_, err = e.ConsumePool(ctx, env(alice, 100), bluna, 0, sdkmath.LegacyNewDecWithPrec(5, 1), sdkmath.NewInt(1))
	check.True(t, errors.Is(err, state.ErrUnauthorized))

	res, err := e.ExecuteLiquidation(ctx, env(keeper, 1000), bluna, sdkmath.NewInt(10), sdkmath.LegacyOneDec(), 1000)
	assert.NoError(t, err)
	check.Equal(t, "10", res.StableConsumed.String())

	_, err = e.ConsumePool(ctx, env(keeper, 1000), bluna, 0, sdkmath.LegacyNewDecWithPrec(5, 1), sdkmath.NewInt(1))
	check.NoError(t, err)

	pool, err := e.BidPool(ctx, bluna, 0)
	check.NoError(t, err)
	check.Equal(t, "495", pool.TotalBidAmount.String())
}

func TestOverlongTokensRejected(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	long := strings.Repeat("x", state.MaxTokenLen+1)

	err := e.WhitelistCollateral(ctx, env(owner, 0), long, sdkmath.ZeroInt(), 10)
	check.True(t, errors.Is(err, state.ErrInvalidToken))
	err = e.WhitelistCollateral(ctx, env(owner, 0), "", sdkmath.ZeroInt(), 10)
	check.True(t, errors.Is(err, state.ErrInvalidToken))

	_, err = e.SubmitBid(ctx, env(long, 0), bluna, 0, sdkmath.NewInt(10))
	check.True(t, errors.Is(err, state.ErrInvalidToken))

	// the longest accepted token still round-trips through its pool key
	edge := strings.Repeat("y", state.MaxTokenLen)
	assert.NoError(t, e.WhitelistCollateral(ctx, env(owner, 0), edge, sdkmath.ZeroInt(), 10))
	info, err := e.CollateralInfo(ctx, edge)
	check.NoError(t, err)
	check.Equal(t, edge, info.CollateralToken)
}
