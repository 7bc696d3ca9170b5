// Package jobs hosts the background worker: expiration sweeps and low-stock
// scans run on cron schedules through Asynq.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gastrodesk/gastrodesk/internal/catalog"
	"github.com/gastrodesk/gastrodesk/internal/dlc"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDLCExpire marks past-date ACTIVE expiration entries EXPIRED.
	TaskDLCExpire = "dlc:expire"
	// TaskLowStockScan reports products under their par level.
	TaskLowStockScan = "stock:lowscan"
)

// NewDLCExpireTask constructs the expiration sweep task.
func NewDLCExpireTask() *asynq.Task {
	return asynq.NewTask(TaskDLCExpire, nil)
}

// NewLowStockScanTask constructs the low-stock scan task.
func NewLowStockScanTask() *asynq.Task {
	return asynq.NewTask(TaskLowStockScan, nil)
}

// DLCSweeper is the slice of the dlc service the worker needs.
type DLCSweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// LowStockLister is the slice of the catalog service the worker needs.
type LowStockLister interface {
	LowStock(ctx context.Context) ([]catalog.Product, error)
}

// Handlers bundles the task handlers with their dependencies.
type Handlers struct {
	Logger  *slog.Logger
	DLC     DLCSweeper
	Catalog LowStockLister
}

// HandleDLCExpire processes TaskDLCExpire tasks.
func (h *Handlers) HandleDLCExpire(ctx context.Context, t *asynq.Task) error {
	expired, err := h.DLC.SweepExpired(ctx, time.Now().UTC())
	if err != nil {
		h.Logger.Error("dlc sweep", slog.Any("error", err))
		return err
	}
	h.Logger.Info("dlc sweep complete", slog.Int64("expired", expired))
	return nil
}

// HandleLowStockScan processes TaskLowStockScan tasks. Notification delivery
// is handled elsewhere; the scan records what is under par.
func (h *Handlers) HandleLowStockScan(ctx context.Context, t *asynq.Task) error {
	products, err := h.Catalog.LowStock(ctx)
	if err != nil {
		h.Logger.Error("low stock scan", slog.Any("error", err))
		return err
	}
	for _, p := range products {
		par := ""
		if p.ParLevel != nil {
			par = p.ParLevel.String()
		}
		h.Logger.Warn("product under par level",
			slog.Int64("product_id", p.ID),
			slog.String("name", p.Name),
			slog.String("quantity", p.Quantity.String()),
			slog.String("par_level", par))
	}
	h.Logger.Info("low stock scan complete", slog.Int("under_par", len(products)))
	return nil
}

var _ DLCSweeper = (*dlc.Service)(nil)
var _ LowStockLister = (*catalog.Service)(nil)
