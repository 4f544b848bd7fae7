package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/marketplace/internal/model"
	"go.uber.org/zap"
)

const defaultSendTimeout = 10 * time.Second

// Sink доставляет уведомление в один канал
type Sink interface {
	Name() string
	Send(ctx context.Context, n model.Notification) error
}

// Dispatcher fans a notification out to every sink in the background.
// Sink failures are logged and never reach the caller.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

func NewDispatcher(logger *zap.Logger, timeout time.Duration, sinks ...Sink) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &Dispatcher{
		sinks:   sinks,
		timeout: timeout,
		logger:  logger,
	}
}

// Notify не блокирует вызывающего; отмена ctx не прерывает отправку
func (d *Dispatcher) Notify(ctx context.Context, n model.Notification) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	detached := context.WithoutCancel(ctx)
	for _, sink := range d.sinks {
		d.wg.Add(1)
		go d.send(detached, sink, n)
	}
}

// Wait дожидается всех отправок, запущенных к этому моменту
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) send(ctx context.Context, sink Sink, n model.Notification) {
	defer d.wg.Done()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	log := d.logger.With(
		zap.String("sink", sink.Name()),
		zap.Int64("recipient_id", n.RecipientUserID),
		zap.String("type", string(n.Type)),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Notification sink panicked", zap.Any("panic", r))
		}
	}()

	if err := sink.Send(ctx, n); err != nil {
		log.Warn("Failed to deliver notification", zap.Error(err))
		return
	}

	log.Debug("Notification delivered")
}
