package commitstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite driver
)

/*
sqlCommitStore is a commit store backed by a SQL database. Exclusivity of
claims comes from the (table, version) primary key. The only database that
has been used or tested is SQLite.
*/

////////////////////////////////////////////////////////////////////////////////

type sqlCommitStore struct {
	db *sql.DB
}

// NewSQLCommitStore returns a commit store using db, creating its schema if
// needed.
func NewSQLCommitStore(ctx context.Context, db *sql.DB) (CommitStore, error) {
	cs := &sqlCommitStore{db: db}
	if err := cs.initialize(ctx); err != nil {
		return nil, err
	}
	return cs, nil
}

func (cs *sqlCommitStore) initialize(ctx context.Context) error {
	if _, err := cs.db.ExecContext(ctx, `
	create table if not exists commits (
		table_name text not null,
		version bigint not null,
		data blob,
		complete boolean not null default false,
		claimed_at bigint not null,
		primary key (table_name, version)
	);

	create table if not exists schema_migrations (
		version bigint not null,
		timestamp text not null default current_timestamp
	);

	insert into schema_migrations (version)
	select 1 where not exists (select 1 from schema_migrations where version = 1);
	`); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (cs *sqlCommitStore) Claim(ctx context.Context, table string, version int64, data []byte) error {
	result, err := cs.db.ExecContext(ctx, `
	insert into commits (table_name, version, data, complete, claimed_at)
	values ($1, $2, $3, false, $4)
	on conflict do nothing`,
		table, version, data, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to claim version %d: %w", version, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read claim result: %w", err)
	}
	if n == 0 {
		return VersionClaimedError{table, version}
	}
	return nil
}

func (cs *sqlCommitStore) Complete(ctx context.Context, table string, version int64) error {
	result, err := cs.db.ExecContext(ctx, `
	update commits set complete = true, data = null
	where table_name = $1 and version = $2`,
		table, version,
	)
	if err != nil {
		return fmt.Errorf("failed to complete version %d: %w", version, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read completion result: %w", err)
	}
	if n == 0 {
		return EntryNotFoundError{table, version}
	}
	return nil
}

func scanEntry(table string, row *sql.Row, version int64) (Entry, error) {
	entry := Entry{Table: table}
	var claimedAt int64
	if err := row.Scan(&entry.Version, &entry.Data, &entry.Complete, &claimedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, EntryNotFoundError{table, version}
		}
		return Entry{}, fmt.Errorf("failed to read commit store: %w", err)
	}
	entry.ClaimedAt = time.UnixMilli(claimedAt)
	return entry, nil
}

func (cs *sqlCommitStore) Get(ctx context.Context, table string, version int64) (Entry, error) {
	row := cs.db.QueryRowContext(ctx, `
	select version, data, complete, claimed_at from commits
	where table_name = $1 and version = $2`,
		table, version,
	)
	return scanEntry(table, row, version)
}

func (cs *sqlCommitStore) Latest(ctx context.Context, table string) (Entry, error) {
	row := cs.db.QueryRowContext(ctx, `
	select version, data, complete, claimed_at from commits
	where table_name = $1 order by version desc limit 1`,
		table,
	)
	return scanEntry(table, row, -1)
}

func (cs *sqlCommitStore) Incomplete(ctx context.Context, table string) ([]Entry, error) {
	rows, err := cs.db.QueryContext(ctx, `
	select version, data, claimed_at from commits
	where table_name = $1 and not complete order by version`,
		table,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query commit store: %w", err)
	}
	defer rows.Close()
	result := []Entry{}
	for rows.Next() {
		entry := Entry{Table: table}
		var claimedAt int64
		if err := rows.Scan(&entry.Version, &entry.Data, &claimedAt); err != nil {
			return nil, fmt.Errorf("failed to scan commit store: %w", err)
		}
		entry.ClaimedAt = time.UnixMilli(claimedAt)
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate commit store: %w", err)
	}
	return result, nil
}
