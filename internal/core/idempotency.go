package core

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"LiquidationQueue/internal/event"
	"LiquidationQueue/internal/observability"
)

// CommandDeduplicator is the in-memory tier of command deduplication. The
// durable tier is the processed_cmd marker written in the same transaction
// as the command's effects, so the LRU only saves store lookups.
type CommandDeduplicator struct {
	mu      sync.Mutex
	lru     *CommandLRU
	metrics *observability.Metrics
}

func NewCommandDeduplicator(capacity int, metrics *observability.Metrics) *CommandDeduplicator {
	return &CommandDeduplicator{
		lru:     NewCommandLRU(capacity),
		metrics: metrics,
	}
}

// Seen reports whether id is in the LRU.
func (d *CommandDeduplicator) Seen(id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lru.Contains(id)
}

// MarkProcessed adds id to the LRU after its transaction committed.
func (d *CommandDeduplicator) MarkProcessed(id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	before := d.lru.Evictions()
	d.lru.Add(id)
	if d.metrics != nil {
		d.metrics.DedupLRUSize.Set(float64(d.lru.Size()))
		if n := d.lru.Evictions() - before; n > 0 {
			d.metrics.DedupLRUEvictions.Add(float64(n))
		}
	}
}

func (d *CommandDeduplicator) recordDuplicate(cmdType, tier string) {
	if d.metrics != nil {
		d.metrics.CommandDuplicates.WithLabelValues(cmdType, tier).Inc()
	}
}

// ApplyResult is the outcome of Apply. Value holds the operation's return
// value (idx, amount, Consumption or LiquidationResult) and is nil for
// duplicates.
type ApplyResult struct {
	Duplicate bool
	Value     interface{}
}

// Apply executes an upstream command at most once per CommandID. A
// duplicate is not an error: it reports Duplicate and changes nothing.
func (e *Engine) Apply(ctx context.Context, cmd event.Command) (ApplyResult, error) {
	id := cmd.CommandID()
	cmdType := cmd.CommandType().String()

	if e.dedup.Seen(id) {
		e.dedup.recordDuplicate(cmdType, "lru")
		return ApplyResult{Duplicate: true}, nil
	}

	var res ApplyResult
	c := &call{env: Env{Sender: cmd.Caller(), BlockTime: cmd.BlockTime()}, cmdID: &id}
	err := e.run(ctx, "command_"+cmdType, c, func(c *call) error {
		done, err := c.ledger.CommandProcessed(id)
		if err != nil {
			return err
		}
		if done {
			res.Duplicate = true
			return nil
		}
		if res.Value, err = e.dispatch(c, cmd); err != nil {
			return err
		}
		return c.ledger.MarkCommandProcessed(id)
	})
	if err != nil {
		return ApplyResult{}, fmt.Errorf("%s %s: %w", cmdType, id, err)
	}
	if res.Duplicate {
		e.dedup.recordDuplicate(cmdType, "store")
	}
	e.dedup.MarkProcessed(id)
	return res, nil
}

func (e *Engine) dispatch(c *call, cmd event.Command) (interface{}, error) {
	switch cmd := cmd.(type) {
	case *event.SubmitBid:
		return e.submitBid(c, cmd.Collateral, cmd.Slot, cmd.Amount)
	case *event.ActivateBids:
		return e.activateBids(c, cmd.Collateral, cmd.BidIdxs)
	case *event.RetractBid:
		return e.retractBid(c, cmd.BidIdx, cmd.Amount)
	case *event.ClaimLiquidations:
		return e.claimLiquidations(c, cmd.Collateral, cmd.BidIdxs)
	case *event.ConsumePool:
		if _, err := c.ledger.ReadCollateralInfo(cmd.Collateral); err != nil {
			return nil, err
		}
		return e.consumePool(c, cmd.Collateral, cmd.Slot, cmd.Fraction, cmd.CollateralAmount)
	case *event.ExecuteLiquidation:
		return e.executeLiquidation(c, cmd.Collateral, cmd.Amount, cmd.Price, cmd.PriceUpdatedAt)
	default:
		return nil, fmt.Errorf("unsupported command %T", cmd)
	}
}

// --- LRU ---

// CommandLRU is a fixed-capacity set of recently applied command ids. Not
// thread-safe; CommandDeduplicator guards it.
type CommandLRU struct {
	capacity int
	cache    map[uuid.UUID]*list.Element
	lruList  *list.List

	evictions int64
}

func NewCommandLRU(capacity int) *CommandLRU {
	if capacity < 1 {
		capacity = 1
	}
	return &CommandLRU{
		capacity: capacity,
		cache:    make(map[uuid.UUID]*list.Element, capacity),
		lruList:  list.New(),
	}
}

// Contains checks if id exists (promotes to front)
func (lru *CommandLRU) Contains(id uuid.UUID) bool {
	elem, exists := lru.cache[id]
	if exists {
		lru.lruList.MoveToFront(elem)
		return true
	}
	return false
}

// Add inserts id (or promotes if exists)
func (lru *CommandLRU) Add(id uuid.UUID) {
	if elem, exists := lru.cache[id]; exists {
		lru.lruList.MoveToFront(elem)
		return
	}
	lru.cache[id] = lru.lruList.PushFront(id)
	if lru.lruList.Len() > lru.capacity {
		lru.evictOldest()
	}
}

func (lru *CommandLRU) evictOldest() {
	elem := lru.lruList.Back()
	if elem != nil {
		lru.lruList.Remove(elem)
		delete(lru.cache, elem.Value.(uuid.UUID))
		lru.evictions++
	}
}

// Size returns current number of entries
func (lru *CommandLRU) Size() int {
	return lru.lruList.Len()
}

// Evictions returns total evictions
func (lru *CommandLRU) Evictions() int64 {
	return lru.evictions
}
