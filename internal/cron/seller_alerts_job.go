package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const defaultAlertLookback = 24 * time.Hour

type alertScanner interface {
	Scan(ctx context.Context, since time.Time) (notifications.ScanResult, error)
}

type SellerAlertsJobParams struct {
	Logger  *logger.Logger
	Scanner alertScanner
	// Lookback bounds the first scan after start, when there is no cursor yet.
	Lookback time.Duration
}

func NewSellerAlertsJob(params SellerAlertsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Scanner == nil {
		return nil, fmt.Errorf("alert scanner required")
	}
	lookback := params.Lookback
	if lookback <= 0 {
		lookback = defaultAlertLookback
	}
	return &sellerAlertsJob{
		logg:     params.Logger,
		scanner:  params.Scanner,
		lookback: lookback,
		now:      time.Now,
	}, nil
}

// sellerAlertsJob remembers the newest change it has seen and resumes from
// there. The cursor is kept in memory; after a restart the lookback rescans
// recent rows and the alert unique index drops the repeats.
type sellerAlertsJob struct {
	logg     *logger.Logger
	scanner  alertScanner
	lookback time.Duration
	now      func() time.Time

	mu     sync.Mutex
	cursor time.Time
}

func (j *sellerAlertsJob) Name() string { return "seller-alerts" }

func (j *sellerAlertsJob) Run(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	since := j.cursor
	if since.IsZero() {
		since = j.now().UTC().Add(-j.lookback)
	}

	result, err := j.scanner.Scan(ctx, since)
	// a failed pass keeps the old cursor so the next one retries every row
	switch {
	case err == nil && result.Latest.After(since):
		j.cursor = result.Latest
	case j.cursor.IsZero():
		j.cursor = since
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"since":          since,
		"rows_scanned":   result.Scanned,
		"alerts_created": result.Created,
	})
	if err != nil {
		return fmt.Errorf("seller alerts scan: %w", err)
	}
	if result.Created > 0 {
		j.logg.Info(logCtx, "seller alerts raised")
	} else {
		j.logg.Debug(logCtx, "seller alerts up to date")
	}
	return nil
}
