package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"shipment-orchestrator/internal/models"
)

// ActiveShipmentLister lists orders whose shipments are still moving
type ActiveShipmentLister interface {
	ListActiveShipments(ctx context.Context, limit int) ([]*models.Order, error)
}

// TrackingRefresher pulls live tracking for one order and applies it
type TrackingRefresher interface {
	RefreshTracking(ctx context.Context, order *models.Order) error
}

// TrackingPoller periodically refreshes tracking to cover missed webhooks
type TrackingPoller struct {
	orders      ActiveShipmentLister
	refresher   TrackingRefresher
	logger      *logrus.Entry
	interval    time.Duration
	batchSize   int
	concurrency int
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewTrackingPoller creates a new tracking poller
func NewTrackingPoller(orders ActiveShipmentLister, refresher TrackingRefresher, interval time.Duration, batchSize, concurrency int, logger *logrus.Logger) *TrackingPoller {
	if batchSize <= 0 {
		batchSize = 50
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &TrackingPoller{
		orders:      orders,
		refresher:   refresher,
		logger:      logger.WithField("component", "tracking-poller"),
		interval:    interval,
		batchSize:   batchSize,
		concurrency: concurrency,
		stopCh:      make(chan struct{}),
	}
}

// Start runs the poller until Stop is called or ctx is done
func (p *TrackingPoller) Start(ctx context.Context) {
	if p.interval <= 0 {
		p.logger.Info("Tracking poller disabled")
		return
	}
	p.logger.WithField("interval", p.interval.String()).Info("Tracking poller started")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.RunOnce(ctx)
		case <-p.stopCh:
			p.logger.Info("Tracking poller stopped")
			return
		case <-ctx.Done():
			p.logger.Info("Tracking poller context cancelled")
			return
		}
	}
}

// Stop signals the poller to stop
func (p *TrackingPoller) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// RunOnce refreshes one batch and returns how many orders failed
func (p *TrackingPoller) RunOnce(ctx context.Context) int {
	orders, err := p.orders.ListActiveShipments(ctx, p.batchSize)
	if err != nil {
		p.logger.WithError(err).Error("Failed to list active shipments")
		return 0
	}
	if len(orders) == 0 {
		p.logger.Debug("No active shipments to refresh")
		return 0
	}

	var failed int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, order := range orders {
		order := order
		g.Go(func() error {
			if err := p.refresher.RefreshTracking(gctx, order); err != nil {
				atomic.AddInt32(&failed, 1)
				p.logger.WithError(err).WithField("order_id", order.ID).Warn("Tracking refresh failed")
			}
			// one failed order must not cancel the batch
			return nil
		})
	}
	_ = g.Wait()

	p.logger.WithFields(logrus.Fields{
		"orders": len(orders),
		"failed": failed,
	}).Info("Tracking refresh batch completed")
	return int(failed)
}
