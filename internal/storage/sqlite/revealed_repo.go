// Package sqlite keeps revealed messages on the local disk so a message is
// decrypted through the relayer at most once per device.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"phantom_link/internal/model"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"
)

type RevealedRepo struct {
	db *sql.DB
}

func NewRevealedRepo(dbPath string) (*RevealedRepo, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open reveal cache: %w", err)
	}

	repo := &RevealedRepo{db: db}
	if err := repo.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create reveal cache table: %w", err)
	}
	return repo, nil
}

func (r *RevealedRepo) createTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS revealed (
		owner TEXT NOT NULL,
		idx INTEGER NOT NULL,
		handle TEXT NOT NULL,
		ephemeral_key TEXT NOT NULL,
		plaintext TEXT NOT NULL,
		revealed_at INTEGER NOT NULL,
		PRIMARY KEY (owner, idx, handle)
	);

	CREATE INDEX IF NOT EXISTS idx_revealed_owner ON revealed(owner);
	`
	_, err := r.db.Exec(query)
	return err
}

// Put stores or replaces a revealed message.
func (r *RevealedRepo) Put(ctx context.Context, v *model.Revealed) error {
	query := `
	INSERT OR REPLACE INTO revealed (owner, idx, handle, ephemeral_key, plaintext, revealed_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		strings.ToLower(v.Owner.Hex()),
		int64(v.Index),
		v.Handle.Hex(),
		v.EphemeralAddress.Hex(),
		v.Plaintext,
		v.RevealedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save revealed message: %w", err)
	}
	return nil
}

// Get returns the cached reveal of (owner, index, handle), or nil.
func (r *RevealedRepo) Get(ctx context.Context, owner common.Address, index uint64, h model.Handle) (*model.Revealed, error) {
	query := `
	SELECT ephemeral_key, plaintext, revealed_at
	FROM revealed
	WHERE owner = ? AND idx = ? AND handle = ?
	`
	var (
		eph        string
		revealedAt int64
		v          = &model.Revealed{Owner: owner, Index: index, Handle: h}
	)
	err := r.db.QueryRowContext(ctx, query, strings.ToLower(owner.Hex()), int64(index), h.Hex()).
		Scan(&eph, &v.Plaintext, &revealedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load revealed message: %w", err)
	}
	v.EphemeralAddress = common.HexToAddress(eph)
	v.RevealedAt = time.Unix(revealedAt, 0)
	return v, nil
}

func (r *RevealedRepo) Count(ctx context.Context, owner common.Address) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM revealed WHERE owner = ?`, strings.ToLower(owner.Hex())).Scan(&n)
	return n, err
}

func (r *RevealedRepo) Close() error {
	return r.db.Close()
}
