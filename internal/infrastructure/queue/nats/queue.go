package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
	"github.com/kirillkom/filing-classifier/internal/infrastructure/resilience"
)

const queueGroup = "filing-workers"

// Queue publishes and consumes filing submission events. It implements
// ports.MessageQueue.
type Queue struct {
	conn           *nats.Conn
	subject        string
	executor       *resilience.Executor
	logger         *slog.Logger
	handlerTimeout time.Duration
	lagObserver    func(time.Duration)
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
	// HandlerTimeout bounds one handler invocation; zero means no limit.
	HandlerTimeout time.Duration
	// LagObserver, if set, receives the delay between submission and delivery.
	LagObserver func(time.Duration)
}

// filingSubmitted is the event payload.
type filingSubmitted struct {
	FilingID    string    `json:"filing_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

func New(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("filing-classifier"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:           conn,
		subject:        subject,
		executor:       options.ResilienceExecutor,
		logger:         logger,
		handlerTimeout: options.HandlerTimeout,
		lagObserver:    options.LagObserver,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishFilingSubmitted(ctx context.Context, filingID string) error {
	payload, err := encodeEvent(filingID, time.Now().UTC())
	if err != nil {
		return err
	}
	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return publishError(err)
	}
	return nil
}

// SubscribeFilingSubmitted blocks until ctx is done, handing each filing ID
// to handler. Handler errors are logged; the filing's status records them.
func (q *Queue) SubscribeFilingSubmitted(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, queueGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		event, err := decodeEvent(msg.Data)
		if err != nil {
			q.logger.Error("nats_event_invalid", "subject", msg.Subject, "error", err)
			return
		}
		filingID := event.FilingID
		if q.lagObserver != nil && !event.SubmittedAt.IsZero() {
			q.lagObserver(time.Since(event.SubmittedAt))
		}

		handlerCtx, cancel := q.handlerContext(ctx)
		defer cancel()
		if err := handler(handlerCtx, filingID); err != nil {
			q.logger.Error("worker_handler_failed", "filing_id", filingID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (q *Queue) handlerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if q.handlerTimeout > 0 {
		return context.WithTimeout(ctx, q.handlerTimeout)
	}
	return context.WithCancel(ctx)
}

func encodeEvent(filingID string, at time.Time) ([]byte, error) {
	if strings.TrimSpace(filingID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "nats publish", errors.New("filing id is empty"))
	}
	payload, err := json.Marshal(filingSubmitted{FilingID: filingID, SubmittedAt: at})
	if err != nil {
		return nil, fmt.Errorf("encode filing event: %w", err)
	}
	return payload, nil
}

func decodeEvent(data []byte) (filingSubmitted, error) {
	var event filingSubmitted
	if err := json.Unmarshal(data, &event); err != nil {
		return filingSubmitted{}, fmt.Errorf("decode filing event: %w", err)
	}
	if strings.TrimSpace(event.FilingID) == "" {
		return filingSubmitted{}, errors.New("filing event without filing_id")
	}
	return event, nil
}
