package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const heartbeatInterval = 25 * time.Second

type snapshotFeed interface {
	Subscribe(ctx context.Context, orderID uuid.UUID, onChange func(internalorders.OrderSnapshot)) (func(), error)
}

// Events streams order snapshots as server-sent events. The current state is
// sent first; every later event replaces it entirely.
func Events(svc internalorders.Service, feed snapshotFeed, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || feed == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order feed unavailable"))
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}

		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		// scope check; the feed itself is not actor aware
		order, err := svc.GetOrder(ctx, orderID, actor)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		latest := make(chan internalorders.OrderSnapshot, 1)
		unsubscribe, err := feed.Subscribe(ctx, orderID, func(snapshot internalorders.OrderSnapshot) {
			for {
				select {
				case latest <- snapshot:
					return
				default:
				}
				// drop the stale snapshot still waiting; only the newest matters
				select {
				case <-latest:
				default:
				}
			}
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		defer unsubscribe()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		if err := writeSnapshot(w, internalorders.OrderSnapshot{Order: *order, PublishedAt: time.Now().UTC()}); err != nil {
			return
		}
		flusher.Flush()

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case snapshot := <-latest:
				if err := writeSnapshot(w, snapshot); err != nil {
					if logg != nil {
						logg.Warn(logg.WithField(ctx, "error", err.Error()), "order stream write failed")
					}
					return
				}
				flusher.Flush()
			case <-heartbeat.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

func writeSnapshot(w http.ResponseWriter, snapshot internalorders.OrderSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: order\ndata: %s\n\n", payload)
	return err
}
