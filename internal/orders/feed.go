package orders

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

type broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (redis.Subscription, error)
	OrderChannel(orderID string) string
}

// Feed delivers full order snapshots to live subscribers over Redis pub/sub.
type Feed struct {
	broker broker
	logg   *logger.Logger
}

// NewFeed builds a Feed on top of the given broker.
func NewFeed(b broker, logg *logger.Logger) (*Feed, error) {
	if b == nil {
		return nil, errors.New("feed broker required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Feed{broker: b, logg: logg}, nil
}

// Publish sends the committed state of order to its channel.
func (f *Feed) Publish(ctx context.Context, order *models.TotalOrder) error {
	if order == nil {
		return errors.New("order required")
	}
	payload, err := json.Marshal(OrderSnapshot{Order: *order, PublishedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return f.broker.Publish(ctx, f.broker.OrderChannel(order.ID.String()), payload)
}

// Subscribe calls onChange with every snapshot published for orderID until
// the returned function is called or ctx ends. Each snapshot replaces the
// previous one entirely. The returned function blocks until delivery has
// stopped and is safe to call more than once.
func (f *Feed) Subscribe(ctx context.Context, orderID uuid.UUID, onChange func(OrderSnapshot)) (func(), error) {
	if onChange == nil {
		return nil, errors.New("onChange callback required")
	}
	sub, err := f.broker.Subscribe(ctx, f.broker.OrderChannel(orderID.String()))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "subscribe to order feed")
	}

	ctx, cancel := context.WithCancel(ctx)
	logCtx := f.logg.WithOrderID(ctx, orderID.String())
	done := make(chan struct{})

	go func() {
		defer close(done)
		messages := sub.Messages()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var snapshot OrderSnapshot
				if err := json.Unmarshal([]byte(msg.Payload), &snapshot); err != nil {
					f.logg.Warn(f.logg.WithField(logCtx, "error", err.Error()), "skipping undecodable order snapshot")
					continue
				}
				onChange(snapshot)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			if err := sub.Close(); err != nil {
				f.logg.Warn(f.logg.WithField(logCtx, "error", err.Error()), "closing order feed subscription")
			}
			<-done
		})
	}, nil
}
