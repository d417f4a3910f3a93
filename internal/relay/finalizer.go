package relay

import (
	"context"
	"sync"
	"time"

	accountdomain "github.com/tokengate/tokengate/internal/account/domain"
	"github.com/tokengate/tokengate/internal/config"
	"github.com/tokengate/tokengate/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Finalizer applies debits after the client-facing response is finished.
// Settlement is detached from the request: a closed client connection must
// never cancel the charge, so jobs run under their own context.
type Finalizer struct {
	log        *zap.Logger
	metrics    *metrics.Metrics
	accountSvc accountdomain.Service
	timeout    time.Duration

	jobs chan accountdomain.DebitRequest
	wg   sync.WaitGroup
}

func NewFinalizer(cfg config.Config, log *zap.Logger, m *metrics.Metrics, accountSvc accountdomain.Service) *Finalizer {
	size := cfg.FinalizerQueueSize
	if size < 1 {
		size = 1
	}
	timeout := time.Duration(cfg.FinalizerTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Finalizer{
		log:        log.Named("relay.finalizer"),
		metrics:    m,
		accountSvc: accountSvc,
		timeout:    timeout,
		jobs:       make(chan accountdomain.DebitRequest, size),
	}
}

// Start launches the settlement worker.
func (f *Finalizer) Start() {
	f.wg.Add(1)
	go f.run()
}

// Stop closes the queue and waits for queued debits to settle.
func (f *Finalizer) Stop() {
	close(f.jobs)
	f.wg.Wait()
}

// Enqueue hands a debit to the worker. It never blocks the caller: when the
// queue is full the debit settles on its own goroutine instead, so no debit
// is ever lost to backpressure.
func (f *Finalizer) Enqueue(req accountdomain.DebitRequest) {
	select {
	case f.jobs <- req:
		f.metrics.SetFinalizerQueueDepth(len(f.jobs))
	default:
		f.log.Warn("finalizer queue full, settling out of band",
			zap.String("account_id", req.AccountID.String()),
			zap.String("model", req.Model),
		)
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			f.settle(req)
		}()
	}
}

func (f *Finalizer) run() {
	defer f.wg.Done()

	for req := range f.jobs {
		f.settle(req)
		f.metrics.SetFinalizerQueueDepth(len(f.jobs))
	}
}

func (f *Finalizer) settle(req accountdomain.DebitRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	record, err := f.accountSvc.Debit(ctx, req)
	if err != nil {
		f.metrics.IncDebitFailure(req.Model)
		f.log.Error("debit failed",
			zap.String("account_id", req.AccountID.String()),
			zap.String("model", req.Model),
			zap.Error(err),
		)
		return
	}

	f.metrics.AddTokensCharged(req.Model, record.CostTokens)
	f.log.Debug("usage settled",
		zap.String("account_id", req.AccountID.String()),
		zap.String("model", req.Model),
		zap.Int64("cost_tokens", record.CostTokens),
	)
}

func registerFinalizer(lc fx.Lifecycle, f *Finalizer) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			f.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			f.Stop()
			return nil
		},
	})
}
