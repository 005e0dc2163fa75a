package scale

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/kuncy7/toolid/pkg/models"
)

const (
	// DefaultBackoff is the wait between reconnect attempts
	DefaultBackoff = 5 * time.Second

	readChunkSize = 256
	recordTimeout = 5 * time.Second
)

// Sink persists extracted weights
type Sink interface {
	RecordWeight(ctx context.Context, scaleID int64, weight float64) (*models.ScaleWeight, error)
}

// Listener reads one scale until its context is cancelled.
// It reconnects forever with a fixed backoff; no error ends it.
type Listener struct {
	config  models.ScaleConfig
	opener  Opener
	sink    Sink
	backoff time.Duration
	logger  *log.Logger
}

// ListenerOption configures a Listener
type ListenerOption func(*Listener)

// WithBackoff sets the wait between reconnect attempts
func WithBackoff(d time.Duration) ListenerOption {
	return func(l *Listener) {
		if d > 0 {
			l.backoff = d
		}
	}
}

// WithLogger sets the logger used by the listener
func WithLogger(logger *log.Logger) ListenerOption {
	return func(l *Listener) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewListener creates a listener for the given scale
func NewListener(cfg models.ScaleConfig, opener Opener, sink Sink, opts ...ListenerOption) *Listener {
	l := &Listener{
		config:  cfg,
		opener:  opener,
		sink:    sink,
		backoff: DefaultBackoff,
		logger:  log.New(os.Stderr, fmt.Sprintf("[scale %d] ", cfg.ID), log.LstdFlags),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Run connects, streams and reconnects until ctx is cancelled
func (l *Listener) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		l.logger.Printf("Connecting to scale %d on %s...", l.config.ID, l.config.Port)

		conn, err := l.opener.Open(l.config)
		if err != nil {
			l.logger.Printf("❌ Serial error with scale %d on %s: %v", l.config.ID, l.config.Port, err)
			if !l.wait(ctx) {
				return
			}
			continue
		}

		l.logger.Printf("✓ Connected to scale %d on %s", l.config.ID, l.config.Port)

		err = l.stream(ctx, conn)
		if closeErr := conn.Close(); closeErr != nil {
			l.logger.Printf("⚠ Failed to close %s: %v", l.config.Port, closeErr)
		}

		if err == nil {
			return
		}

		l.logger.Printf("❌ Lost scale %d on %s: %v", l.config.ID, l.config.Port, err)
		if !l.wait(ctx) {
			return
		}
	}
}

// stream reads from conn until ctx is cancelled (nil) or the transport fails
func (l *Listener) stream(ctx context.Context, conn Connection) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected listener failure: %v", r)
		}
	}()

	var reassembler Reassembler
	buf := make([]byte, readChunkSize)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, readErr := conn.ReadChunk(buf)
		if n > 0 {
			for _, line := range reassembler.Feed(buf[:n]) {
				l.handleLine(ctx, line)
			}
		}

		if readErr != nil {
			return readErr
		}
	}
}

func (l *Listener) handleLine(ctx context.Context, line string) {
	weight, ok, err := Extract(line)
	if err != nil {
		l.logger.Printf("❌ %v", err)
		return
	}
	if !ok {
		return
	}

	// A reading extracted before a stop signal is still written.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if _, err := l.sink.RecordWeight(recordCtx, l.config.ID, weight); err != nil {
		l.logger.Printf("❌ %v", &PersistenceError{ScaleID: l.config.ID, Weight: weight, Err: err})
		return
	}

	l.logger.Printf("✓ Saved weight %gg for scale %d", weight, l.config.ID)
}

// wait sleeps for the backoff interval; false means ctx was cancelled
func (l *Listener) wait(ctx context.Context) bool {
	timer := time.NewTimer(l.backoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
