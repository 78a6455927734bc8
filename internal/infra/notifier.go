package infra

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Ledger change events published for live listeners (UI push updates).
// The closing logic itself never reads them back.
const (
	EventMovementCreated = "movement.created"
	EventTransaction     = "transaction.changed"
	EventClosingCreated  = "closing.created"
	EventSweepCompleted  = "sweep.completed"
)

// LedgerEvent is the pub/sub payload.
type LedgerEvent struct {
	Type       string    `json:"type"`
	TenantID   string    `json:"tenant_id"`
	RegisterID string    `json:"register_id"`
	ClosingID  string    `json:"closing_id,omitempty"`
	ObjectID   string    `json:"object_id,omitempty"`
	DaysClosed int       `json:"days_closed,omitempty"`
	At         time.Time `json:"at"`
}

// LedgerChannel is the redis channel for one register's changes.
func LedgerChannel(tenantID, registerID string) string {
	return "ledger:" + tenantID + ":" + registerID
}

// Notifier fans ledger events out over redis pub/sub.
type Notifier struct {
	rdb *redis.Client
}

func NewNotifier(rdb *redis.Client) *Notifier { return &Notifier{rdb: rdb} }

// Publish sends ev to the register channel.
func (n *Notifier) Publish(ctx context.Context, ev LedgerEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, LedgerChannel(ev.TenantID, ev.RegisterID), data).Err()
}

// Subscribe streams events for one register until ctx is done or the returned
// close func is called.
func (n *Notifier) Subscribe(ctx context.Context, tenantID, registerID string) (<-chan LedgerEvent, func() error) {
	sub := n.rdb.Subscribe(ctx, LedgerChannel(tenantID, registerID))
	out := make(chan LedgerEvent, 16)

	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev LedgerEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Warn().Err(err).Str("channel", msg.Channel).Msg("notifier: bad payload")
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, sub.Close
}
