package influxdb

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/litesql/internal/infrastructure/config"
)

const (
	pingTimeout = 10 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrUnreachable is returned by Connect when the server does not answer a ping.
	ErrUnreachable = errors.New("influxdb: server unreachable")
)

// Recorder writes statement metrics and connection events to one bucket.
//
// Writes are queued on the client's batching write API and never block
// the statement that produced them. Points recorded after Close are
// dropped.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Recorder struct {
	client influxdb2.Client
	writer api.WriteAPI
	closed atomic.Bool
}

// Connect pings the server in cfg and returns a Recorder for cfg.Bucket.
// Batch failures happen asynchronously and are passed to onError, which
// may be nil.
func Connect(cfg config.InfluxDBConfig, onError func(error)) (*Recorder, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	ready, err := client.Ping(ctx)
	switch {
	case err != nil:
		client.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreachable, cfg.URL, err)
	case !ready:
		client.Close()
		return nil, fmt.Errorf("%w: %s is not ready", ErrUnreachable, cfg.URL)
	}

	r := &Recorder{
		client: client,
		writer: client.WriteAPI(cfg.Org, cfg.Bucket),
	}

	if onError != nil {
		// Closed by the write API when the client shuts down.
		failures := r.writer.Errors()
		go func() {
			for err := range failures {
				onError(err)
			}
		}()
	}

	return r, nil
}

// clientOptions applies the batching settings from cfg, falling back to
// the defaults for non-positive values.
func clientOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize)
	}
	flush := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}

	return influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(flush.Milliseconds()))
}

// WriteStatementMetric records one executed statement in "statements".
func (r *Recorder) WriteStatementMetric(connID, kind string, status, rows int, duration time.Duration) {
	r.record(statementPoint(connID, kind, status, rows, duration, time.Now()))
}

// WriteConnectionEvent records a lifecycle event such as "opened" or
// "close_refused" in "connection_events".
func (r *Recorder) WriteConnectionEvent(connID, event string) {
	r.record(connectionEventPoint(connID, event, time.Now()))
}

func (r *Recorder) record(p *write.Point) {
	if r.writer == nil || r.closed.Load() {
		return
	}
	r.writer.WritePoint(p)
}

// Close writes the pending batch and shuts the client down. Only the first
// call does anything.
func (r *Recorder) Close() {
	if r.client == nil || !r.closed.CompareAndSwap(false, true) {
		return
	}
	r.writer.Flush()
	r.client.Close()
}
