package notification

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"

	"schedule-bridge-backend/internal/model"
	"schedule-bridge-backend/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Cancellation is a booking that was released through the bridge.
type Cancellation struct {
	Auditory       string
	Corpus         string
	StartTime      string
	EndTime        string
	Deleted        int64
	TelegramUserID int64
}

// Message renders the push text for c.
func (c Cancellation) Message() string {
	return fmt.Sprintf("Бронь аудитории %s (%s–%s) отменена.", c.Auditory, c.StartTime, c.EndTime)
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Cancellation
	store   store.Store
	webpush *webpush.Options
	sender  NotificationSender
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, s store.Store, webpushOptions *webpush.Options, logger zerolog.Logger) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Cancellation, size*16),
		store:   s,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
		logger:  logger.With().Str("component", "notification").Logger(),
	}
}

// Start launches the worker goroutines. They stop when ctx is cancelled.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Wait blocks until every worker has returned.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	wp.logger.Debug().Int("worker", id).Msg("worker started")
	for {
		select {
		case ev := <-wp.jobs:
			wp.logger.Debug().Int("worker", id).Str("auditory", ev.Auditory).Msg("processing cancellation")
			wp.notifyCancellation(ctx, ev)
		case <-ctx.Done():
			wp.logger.Debug().Int("worker", id).Msg("worker shutting down")
			return
		}
	}
}

// Dispatch queues ev without blocking the caller. Events are dropped when
// the queue is full.
func (wp *WorkerPool) Dispatch(ev Cancellation) {
	select {
	case wp.jobs <- ev:
	default:
		wp.logger.Warn().Str("auditory", ev.Auditory).Msg("notification queue full, dropping cancellation notice")
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Cancellation {
	return wp.jobs
}

func (wp *WorkerPool) notifyCancellation(ctx context.Context, ev Cancellation) {
	subscriptions, err := wp.store.SubscriptionsForCorpus(ctx, ev.Corpus)
	if err != nil {
		wp.logger.Error().Err(err).Str("corpus", ev.Corpus).Msg("fetching subscriptions failed")
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	wp.logger.Info().Int("subscriptions", len(subscriptions)).Str("auditory", ev.Auditory).Msg("sending cancellation notices")
	payload := []byte(ev.Message())
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.logger.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("sending notification failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		wp.logger.Info().Str("endpoint", sub.Endpoint).Msg("subscription expired, deleting")
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			wp.logger.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("deleting expired subscription failed")
		}
	}
}
