// internal/event/queue_event.go
package event

import "github.com/google/uuid"

// QueueEventType names an outbound notification emitted after a committed
// engine call.
type QueueEventType string

const (
	QueueEventBidSubmitted        QueueEventType = "bid_submitted"
	QueueEventBidsActivated       QueueEventType = "bids_activated"
	QueueEventBidRetracted        QueueEventType = "bid_retracted"
	QueueEventLiquidationsClaimed QueueEventType = "liquidations_claimed"
	QueueEventPoolConsumed        QueueEventType = "pool_consumed"
	QueueEventPoolRolledOver      QueueEventType = "pool_rolled_over"
	QueueEventLiquidationExecuted QueueEventType = "liquidation_executed"
)

// QueueEvent is what downstream consumers receive. Payload is JSON-encodable.
type QueueEvent struct {
	Type       QueueEventType `json:"type"`
	CommandID  *uuid.UUID     `json:"command_id,omitempty"`
	Collateral string         `json:"collateral"`
	BlockTime  uint64         `json:"block_time"`
	Payload    interface{}    `json:"payload"`
}
