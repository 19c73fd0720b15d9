package routes

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/wkalt/tablelog/storage"
	"github.com/wkalt/tablelog/table"
	"github.com/wkalt/tablelog/txlog"
	"github.com/wkalt/tablelog/util/httputil"
	"github.com/wkalt/tablelog/util/log"
)

// writeError responds with the status that matches the error.
func writeError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, txlog.ConcurrentWriteConflictError{}):
		httputil.Conflict(ctx, w, "%s: %w", msg, err)
	case errors.Is(err, txlog.VersionNotFoundError{}),
		errors.Is(err, table.ErrEmptyTable),
		errors.Is(err, table.ErrNoCheckpoint),
		errors.Is(err, table.TimestampOutOfRangeError{}),
		errors.Is(err, storage.ErrObjectNotFound):
		httputil.NotFound(ctx, w, "%s: %w", msg, err)
	case errors.Is(err, table.ErrInvalidTableName):
		httputil.BadRequest(ctx, w, "%s: %w", msg, err)
	default:
		httputil.InternalServerError(ctx, w, "%s: %w", msg, err)
	}
}

// resolveTable looks up the table named in the route and tags the context
// with it.
func resolveTable(
	w http.ResponseWriter,
	r *http.Request,
	catalog *table.Catalog,
) (context.Context, *table.Table, bool) {
	ctx := r.Context()
	name := mux.Vars(r)["table"]
	tbl, err := catalog.Table(ctx, name)
	if err != nil {
		writeError(ctx, w, "failed to open table", err)
		return ctx, nil, false
	}
	return log.WithTable(ctx, name, -1), tbl, true
}

// parseVersion parses an optional version query parameter. It returns
// txlog.NoVersion when absent.
func parseVersion(r *http.Request) (int64, error) {
	s := r.URL.Query().Get("version")
	if s == "" {
		return txlog.NoVersion, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return txlog.NoVersion, errors.New("version must be a non-negative integer")
	}
	return v, nil
}
