package table

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/wkalt/tablelog/actions"
	"github.com/wkalt/tablelog/clock"
	"github.com/wkalt/tablelog/txlog"
	"github.com/wkalt/tablelog/util/log"
)

// Operation describes a commit for its commit info.
type Operation struct {
	Name        string
	Parameters  map[string]string
	BlindAppend bool
}

// Transaction is a single pending commit against a table. It commits at the
// version after the one it read, and reports a conflict if another writer
// got there first. Conflicts are not retried.
type Transaction struct {
	table       *Table
	readVersion int64
	id          string

	mtx    *sync.Mutex
	closed bool
}

// StartTransaction refreshes the table and starts a transaction reading its
// latest version.
func (t *Table) StartTransaction(ctx context.Context) (*Transaction, error) {
	state, err := t.Update(ctx)
	if err != nil {
		return nil, err
	}
	return &Transaction{
		table:       t,
		readVersion: state.Version,
		id:          uuid.New().String(),
		mtx:         &sync.Mutex{},
	}, nil
}

// StartTransactionAt starts a transaction that reads readVersion, which must
// not be newer than the latest version. Committing it conflicts if any version
// after readVersion exists, which lets a caller detect commits made since it
// last looked at the table.
func (t *Table) StartTransactionAt(ctx context.Context, readVersion int64) (*Transaction, error) {
	state, err := t.Update(ctx)
	if err != nil {
		return nil, err
	}
	if readVersion < txlog.NoVersion || readVersion > state.Version {
		return nil, txlog.VersionNotFoundError{Version: readVersion}
	}
	return &Transaction{
		table:       t,
		readVersion: readVersion,
		id:          uuid.New().String(),
		mtx:         &sync.Mutex{},
	}, nil
}

// ReadVersion returns the version the transaction read, or txlog.NoVersion
// for a transaction creating the table.
func (tx *Transaction) ReadVersion() int64 {
	return tx.readVersion
}

// ID returns the transaction ID recorded in the commit info.
func (tx *Transaction) ID() string {
	return tx.id
}

// Commit appends acts to the log at the version after the read version and
// returns that version. A commit info action is recorded ahead of acts. If
// another writer committed the version first, Commit returns a
// txlog.ConcurrentWriteConflictError. A transaction is closed after its first
// commit attempt, successful or not.
func (tx *Transaction) Commit(ctx context.Context, acts []actions.Action, op Operation) (int64, error) {
	tx.mtx.Lock()
	defer tx.mtx.Unlock()
	if tx.closed {
		return txlog.NoVersion, ErrTransactionClosed
	}
	tx.closed = true

	version := tx.readVersion + 1
	lctx := log.WithTable(ctx, tx.table.Root(), version)
	info := actions.CommitInfo{
		Timestamp:           clock.Millis(tx.table.conf.clock.Now()),
		Operation:           op.Name,
		OperationParameters: op.Parameters,
		TxnID:               tx.id,
		IsBlindAppend:       op.BlindAppend,
	}
	if tx.readVersion != txlog.NoVersion {
		readVersion := tx.readVersion
		info.ReadVersion = &readVersion
	}
	entry := make([]actions.Action, 0, len(acts)+1)
	entry = append(entry, info)
	entry = append(entry, acts...)
	if err := tx.table.log.Commit(lctx, version, entry); err != nil {
		return txlog.NoVersion, err
	}
	log.Debugw(lctx, "committed", "operation", op.Name, "actions", len(acts), "txn", tx.id)
	if _, err := tx.table.Update(ctx); err != nil {
		log.Errorw(lctx, "failed to refresh table after commit", "error", err)
	}
	tx.table.afterCommit(ctx, version)
	return version, nil
}
