package archive

import (
	"context"

	"github.com/Mack1234552152/cs2-item-monitor/internal/storage"
)

// Recorder mirrors samples and alerts into an analytic side store. The
// snapshot document stays authoritative; recording is best-effort and never
// gates the monitoring pass.
type Recorder interface {
	RecordSample(ctx context.Context, itemID int64, platform string, sample storage.PriceSample) error
	RecordAlert(ctx context.Context, alert *storage.Alert) error
	Close()
}

// Noop is used when no archive database is configured.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (n *Noop) RecordSample(context.Context, int64, string, storage.PriceSample) error { return nil }
func (n *Noop) RecordAlert(context.Context, *storage.Alert) error                      { return nil }
func (n *Noop) Close()                                                                 {}

var _ Recorder = (*Noop)(nil)
