package ledger

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	_ "modernc.org/sqlite"
)

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS confirmacoes (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL DEFAULT '',
	remedio TEXT NOT NULL,
	data TEXT NOT NULL,
	horario TEXT NOT NULL DEFAULT '',
	hora TEXT NOT NULL DEFAULT '',
	confirmado INTEGER NOT NULL,
	tipo TEXT NOT NULL DEFAULT '',
	registrado_em TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_confirmacoes_data ON confirmacoes (data);

CREATE TABLE IF NOT EXISTS pendencias (
	remedio TEXT NOT NULL,
	data TEXT NOT NULL,
	horario TEXT NOT NULL,
	status TEXT NOT NULL,
	tentativas INTEGER NOT NULL,
	avisos INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (remedio, data, horario)
);
`

// SQLiteStore keeps the ledger in two tables. Save replaces the whole
// document in one transaction, matching the file store semantics.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, oops.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, oops.Errorf("failed to open database: %w", err)
	}

	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, oops.Errorf("failed to set WAL mode: %w", err)
	}

	if _, err = db.Exec(createTablesSQL); err != nil {
		db.Close()
		return nil, oops.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*Ledger, error) {
	l := Empty()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, remedio, data, horario, hora, confirmado, tipo, registrado_em
		 FROM confirmacoes ORDER BY seq`)
	if err != nil {
		return nil, oops.Errorf("failed to query confirmations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e ConfirmationEntry
		var kind string
		if err = rows.Scan(&e.ID, &e.Medication, &e.Date, &e.Slot, &e.Time, &e.Confirmed, &kind, &e.RecordedAt); err != nil {
			return nil, oops.Errorf("failed to scan confirmation: %w", err)
		}
		e.Kind = Kind(kind)
		l.Confirmations = append(l.Confirmations, e)
	}
	if err = rows.Err(); err != nil {
		return nil, oops.Errorf("failed to read confirmations: %w", err)
	}

	pendingRows, err := s.db.QueryContext(ctx,
		`SELECT remedio, data, horario, status, tentativas, avisos
		 FROM pendencias ORDER BY rowid`)
	if err != nil {
		return nil, oops.Errorf("failed to query pending entries: %w", err)
	}
	defer pendingRows.Close()

	for pendingRows.Next() {
		var p PendingEntry
		var status string
		if err = pendingRows.Scan(&p.Medication, &p.Date, &p.Time, &status, &p.Attempts, &p.Notices); err != nil {
			return nil, oops.Errorf("failed to scan pending entry: %w", err)
		}
		p.Status = Status(status)
		l.Pending = append(l.Pending, p)
	}
	if err = pendingRows.Err(); err != nil {
		return nil, oops.Errorf("failed to read pending entries: %w", err)
	}

	return l.normalize(), nil
}

func (s *SQLiteStore) Save(ctx context.Context, l *Ledger) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return oops.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `DELETE FROM confirmacoes`); err != nil {
		return oops.Errorf("failed to clear confirmations: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM pendencias`); err != nil {
		return oops.Errorf("failed to clear pending entries: %w", err)
	}

	for _, e := range l.Confirmations {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO confirmacoes (id, remedio, data, horario, hora, confirmado, tipo, registrado_em)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Medication, e.Date, e.Slot, e.Time, e.Confirmed, string(e.Kind), e.RecordedAt,
		); err != nil {
			return oops.Errorf("failed to insert confirmation: %w", err)
		}
	}

	for _, p := range l.Pending {
		if _, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO pendencias (remedio, data, horario, status, tentativas, avisos)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			p.Medication, p.Date, p.Time, string(p.Status), p.Attempts, p.Notices,
		); err != nil {
			return oops.Errorf("failed to insert pending entry: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return oops.Errorf("failed to commit ledger: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
