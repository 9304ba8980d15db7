package listener

import (
	"context"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"

	"github.com/xwp/ga4-extensions/internal/storage"
)

// Refresher reloads the options snapshot.
type Refresher interface {
	Refresh(ctx context.Context) error
}

type notificationWaiter interface {
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
}

// ListenAndRefresh keeps the options snapshot in step with writes made by
// other processes. It reconnects with jittered backoff until ctx is done.
func ListenAndRefresh(ctx context.Context, st *storage.Store, opts Refresher, channel string, baseBackoff time.Duration) {
	if channel == "" {
		channel = st.ListenChannel()
	}
	for {
		err := listenOnce(ctx, st, opts, channel)
		if ctx.Err() != nil {
			log.Info().Msg("listener stopped")
			return
		}
		backoff := jitter(baseBackoff)
		log.Error().Err(err).Str("channel", channel).Dur("retry_in", backoff).Msg("listener error")
		select {
		case <-ctx.Done():
			log.Info().Msg("listener stopped")
			return
		case <-time.After(backoff):
		}
	}
}

func listenOnce(ctx context.Context, st *storage.Store, opts Refresher, channel string) error {
	conn, err := st.PgxPool().Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err = conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return err
	}
	log.Info().Str("channel", channel).Msg("listening for option changes")

	// a write may have landed while we were disconnected
	if err := opts.Refresh(ctx); err != nil {
		log.Error().Err(err).Msg("refresh options error")
	}
	return loop(ctx, conn.Conn(), opts)
}

// loop returns the first wait error; the caller reconnects.
func loop(ctx context.Context, w notificationWaiter, opts Refresher) error {
	for {
		ntf, err := w.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		log.Debug().Str("channel", ntf.Channel).Str("option", ntf.Payload).Msg("option changed; refreshing")
		if err := opts.Refresh(ctx); err != nil {
			log.Error().Err(err).Msg("refresh options error")
		}
	}
}

func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	factor := 0.5 + rand.Float64() // 0.5x-1.5x
	return time.Duration(float64(base) * factor)
}
