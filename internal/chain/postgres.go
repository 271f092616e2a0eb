package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresStore persists the ledger chain to a PostgreSQL database.
// It implements the Store interface.
//
// Append serialization is optimistic: blocks.idx is the primary key, so two
// appends racing for the same parent collide on insert and the loser gets
// ErrConflict instead of forking the chain.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore creates a PostgresStore backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

// GetTip implements Store.
func (s *PostgresStore) GetTip(ctx context.Context) (*Block, error) {
	b := &Block{}
	err := s.pool.QueryRow(ctx,
		`SELECT idx, timestamp, prev_hash, data_hash, hash
		 FROM blocks ORDER BY idx DESC LIMIT 1`,
	).Scan(&b.Index, &b.Timestamp, &b.PrevHash, &b.DataHash, &b.Hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read chain tip: %w", err)
	}
	return b, nil
}

// AppendAtomic implements Store. Block and entry are inserted in a single
// transaction; a unique violation on the block index or verification code
// means another append won the race and is surfaced as ErrConflict.
func (s *PostgresStore) AppendAtomic(ctx context.Context, block *Block, entry *Entry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`INSERT INTO blocks (idx, timestamp, prev_hash, data_hash, hash)
		 VALUES ($1, $2, $3, $4, $5)`,
		block.Index, block.Timestamp, block.PrevHash, block.DataHash, block.Hash,
	); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert block %d: %w", block.Index, err)
	}

	if entry != nil {
		if _, err := tx.Exec(ctx,
			`INSERT INTO entries (id, block_idx, payload, verification_code, reported_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			entry.ID, entry.BlockIndex, string(entry.Payload),
			entry.VerificationCode, entry.ReportedAt,
		); err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("insert entry %s: %w", entry.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append tx: %w", err)
	}

	s.logger.Debug("block appended",
		zap.Uint64("idx", block.Index),
		zap.String("hash", block.Hash),
	)
	return nil
}

// GetAll implements Store.
func (s *PostgresStore) GetAll(ctx context.Context) ([]*Block, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT idx, timestamp, prev_hash, data_hash, hash
		 FROM blocks ORDER BY idx ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query blocks: %w", err)
	}
	defer rows.Close()

	var blocks []*Block
	for rows.Next() {
		b := &Block{}
		if err := rows.Scan(&b.Index, &b.Timestamp, &b.PrevHash, &b.DataHash, &b.Hash); err != nil {
			return nil, fmt.Errorf("scan block row: %w", err)
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// GetBlockByIndex implements Store.
func (s *PostgresStore) GetBlockByIndex(ctx context.Context, index uint64) (*Block, error) {
	b := &Block{}
	err := s.pool.QueryRow(ctx,
		`SELECT idx, timestamp, prev_hash, data_hash, hash
		 FROM blocks WHERE idx = $1`, index,
	).Scan(&b.Index, &b.Timestamp, &b.PrevHash, &b.DataHash, &b.Hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get block %d: %w", index, err)
	}
	return b, nil
}

// GetEntryByID implements Store.
func (s *PostgresStore) GetEntryByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.scanEntry(ctx,
		`SELECT id, block_idx, payload, verification_code, reported_at
		 FROM entries WHERE id = $1`, id)
}

// GetEntryByCode implements Store.
func (s *PostgresStore) GetEntryByCode(ctx context.Context, code string) (*Entry, error) {
	return s.scanEntry(ctx,
		`SELECT id, block_idx, payload, verification_code, reported_at
		 FROM entries WHERE verification_code = $1`, code)
}

// ListEntries implements Store.
func (s *PostgresStore) ListEntries(ctx context.Context) ([]*Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, block_idx, payload, verification_code, reported_at
		 FROM entries ORDER BY block_idx ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		var payload string
		if err := rows.Scan(&e.ID, &e.BlockIndex, &payload, &e.VerificationCode, &e.ReportedAt); err != nil {
			return nil, fmt.Errorf("scan entry row: %w", err)
		}
		e.Payload = []byte(payload)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) scanEntry(ctx context.Context, query string, arg any) (*Entry, error) {
	e := &Entry{}
	var payload string
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&e.ID, &e.BlockIndex, &payload, &e.VerificationCode, &e.ReportedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	e.Payload = []byte(payload)
	return e, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
