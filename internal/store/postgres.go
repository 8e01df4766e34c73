package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/aurorydraft2026/draftforge/internal/models"
)

const txRetries = 3

// Postgres stores each draft and wallet as a JSONB document with a version
// counter for optimistic concurrency, plus an append-only transaction table
// per wallet.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects and ensures the schema exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS drafts (
			id      TEXT PRIMARY KEY,
			status  TEXT NOT NULL,
			doc     JSONB NOT NULL,
			version BIGINT NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS drafts_status_idx ON drafts (status)`,
		`CREATE TABLE IF NOT EXISTS wallets (
			user_id TEXT PRIMARY KEY,
			doc     JSONB NOT NULL,
			version BIGINT NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS wallet_transactions (
			id      TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			doc     JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS wallet_transactions_user_idx ON wallet_transactions (user_id)`,
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < txRetries; attempt++ {
		err := p.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
		log.Debug().Err(err).Int("attempt", attempt+1).Msg("transaction conflict, retrying")
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", txRetries, lastErr)
}

func (p *Postgres) runOnce(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	pgTx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	tx := &postgresTx{tx: pgTx}
	if err := fn(ctx, tx); err != nil {
		_ = pgTx.Rollback(ctx)
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func retryable(err error) bool {
	if errors.Is(err, ErrConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func (p *Postgres) DraftsByStatus(ctx context.Context, status models.DraftStatus, limit int) ([]*models.Draft, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT doc, version FROM drafts WHERE status = $1 LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query drafts by status: %w", err)
	}
	defer rows.Close()

	var out []*models.Draft
	for rows.Next() {
		var doc []byte
		var version int64
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, fmt.Errorf("failed to scan draft row: %w", err)
		}
		d, err := decodeDraft(doc, version)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) GetDraft(ctx context.Context, id string) (*models.Draft, error) {
	var doc []byte
	var version int64
	err := p.pool.QueryRow(ctx,
		`SELECT doc, version FROM drafts WHERE id = $1`, id).Scan(&doc, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	return decodeDraft(doc, version)
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) GetDraft(ctx context.Context, id string) (*models.Draft, error) {
	var doc []byte
	var version int64
	err := t.tx.QueryRow(ctx,
		`SELECT doc, version FROM drafts WHERE id = $1 FOR UPDATE`, id).Scan(&doc, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	return decodeDraft(doc, version)
}

func (t *postgresTx) PutDraft(ctx context.Context, d *models.Draft) error {
	doc, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}

	if d.Version == 0 {
		_, err := t.tx.Exec(ctx,
			`INSERT INTO drafts (id, status, doc, version) VALUES ($1, $2, $3, 1)`,
			d.ID, string(d.Status), doc)
		if err != nil {
			return fmt.Errorf("failed to insert draft: %w", err)
		}
		return nil
	}

	tag, err := t.tx.Exec(ctx,
		`UPDATE drafts SET status = $2, doc = $3, version = version + 1
		 WHERE id = $1 AND version = $4`,
		d.ID, string(d.Status), doc, d.Version)
	if err != nil {
		return fmt.Errorf("failed to update draft: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (t *postgresTx) DeleteDraft(ctx context.Context, id string) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM drafts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

func (t *postgresTx) GetWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	var doc []byte
	var version int64
	err := t.tx.QueryRow(ctx,
		`SELECT doc, version FROM wallets WHERE user_id = $1 FOR UPDATE`, userID).Scan(&doc, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	var w models.Wallet
	if err := json.Unmarshal(doc, &w); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet: %w", err)
	}
	w.Version = version
	return &w, nil
}

func (t *postgresTx) PutWallet(ctx context.Context, w *models.Wallet) error {
	doc, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("failed to marshal wallet: %w", err)
	}

	if w.Version == 0 {
		_, err := t.tx.Exec(ctx,
			`INSERT INTO wallets (user_id, doc, version) VALUES ($1, $2, 1)`,
			w.UserID, doc)
		if err != nil {
			return fmt.Errorf("failed to insert wallet: %w", err)
		}
		return nil
	}

	tag, err := t.tx.Exec(ctx,
		`UPDATE wallets SET doc = $2, version = version + 1
		 WHERE user_id = $1 AND version = $3`,
		w.UserID, doc, w.Version)
	if err != nil {
		return fmt.Errorf("failed to update wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (t *postgresTx) AppendWalletTransaction(ctx context.Context, userID string, txn models.WalletTransaction) error {
	doc, err := json.Marshal(txn)
	if err != nil {
		return fmt.Errorf("failed to marshal wallet transaction: %w", err)
	}
	_, err = t.tx.Exec(ctx,
		`INSERT INTO wallet_transactions (id, user_id, doc) VALUES ($1, $2, $3)`,
		txn.ID, userID, doc)
	if err != nil {
		return fmt.Errorf("failed to append wallet transaction: %w", err)
	}
	return nil
}

func decodeDraft(doc []byte, version int64) (*models.Draft, error) {
	var d models.Draft
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
	}
	d.Version = version
	return &d, nil
}
