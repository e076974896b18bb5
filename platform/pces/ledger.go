package pces

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SequencerLedger assigns the monotonic stream sequence numbers spec.md
// §4.5 calls "keystone sequence numbers" — durable across restarts because
// they're allocated from a Postgres sequence, not an in-memory counter.
//
// Grounded on control_plane/store/postgres.go's pgxpool setup and
// query/scan pattern.
type SequencerLedger struct {
	pool *pgxpool.Pool
}

// NewSequencerLedger opens a pool against connString. Schema expectations:
//
//	CREATE SEQUENCE IF NOT EXISTS pces_sequence_seq;
//	CREATE TABLE IF NOT EXISTS pces_sequence (
//	    event_id        TEXT PRIMARY KEY,
//	    sequence_number BIGINT NOT NULL
//	);
func NewSequencerLedger(ctx context.Context, connString string) (*SequencerLedger, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}
	config.MaxConns = 20
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}
	return &SequencerLedger{pool: pool}, nil
}

// Close releases the pool.
func (l *SequencerLedger) Close() { l.pool.Close() }

// NextSequenceNumber allocates and durably records the next sequence
// number for eventID. Calling it twice for the same eventID returns the
// previously assigned number rather than allocating a second one.
func (l *SequencerLedger) NextSequenceNumber(ctx context.Context, eventID string) (int64, error) {
	const query = `
		INSERT INTO pces_sequence (event_id, sequence_number)
		VALUES ($1, nextval('pces_sequence_seq'))
		ON CONFLICT (event_id) DO UPDATE SET event_id = EXCLUDED.event_id
		RETURNING sequence_number
	`
	var seq int64
	err := l.pool.QueryRow(ctx, query, eventID).Scan(&seq)
	return seq, err
}

// SequenceNumberFor looks up a previously assigned sequence number without
// allocating a new one. Returns false if eventID was never sequenced.
func (l *SequencerLedger) SequenceNumberFor(ctx context.Context, eventID string) (int64, bool, error) {
	const query = `SELECT sequence_number FROM pces_sequence WHERE event_id = $1`
	var seq int64
	err := l.pool.QueryRow(ctx, query, eventID).Scan(&seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return seq, true, nil
}
