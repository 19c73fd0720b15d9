package routes

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/wkalt/tablelog/actions"
	"github.com/wkalt/tablelog/table"
	"github.com/wkalt/tablelog/util/httputil"
	"github.com/wkalt/tablelog/util/log"
)

// CommitRequest is a request to commit actions to a table. Each action is a
// single-key object as it appears in a log entry, such as
// {"add": {"path": ...}}. If ReadVersion is set, the commit conflicts unless
// it is still the latest version.
type CommitRequest struct {
	Operation   string            `json:"operation"`
	Parameters  map[string]string `json:"parameters,omitempty"`
	ReadVersion *int64            `json:"readVersion,omitempty"`
	BlindAppend bool              `json:"blindAppend,omitempty"`
	Actions     []json.RawMessage `json:"actions"`
}

func (req CommitRequest) validate() error {
	if req.Operation == "" {
		return errors.New("missing operation")
	}
	if len(req.Actions) == 0 {
		return errors.New("no actions")
	}
	return nil
}

func (req CommitRequest) decodeActions() ([]actions.Action, error) {
	buf := &bytes.Buffer{}
	for _, raw := range req.Actions {
		if err := json.Compact(buf, raw); err != nil {
			return nil, err
		}
		buf.WriteByte('\n')
	}
	return actions.Decode(buf.Bytes())
}

// CommitResponse is the version a commit was written at.
type CommitResponse struct {
	Version int64 `json:"version"`
}

func newCommitHandler(catalog *table.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, tbl, ok := resolveTable(w, r, catalog)
		if !ok {
			return
		}
		req := CommitRequest{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.BadRequest(ctx, w, "failed to decode request: %s", err)
			return
		}
		if err := req.validate(); err != nil {
			httputil.BadRequest(ctx, w, "invalid request: %s", err)
			return
		}
		acts, err := req.decodeActions()
		if err != nil {
			httputil.BadRequest(ctx, w, "invalid actions: %s", err)
			return
		}
		log.Infow(ctx, "commit request", "operation", req.Operation, "actions", len(acts))
		var tx *table.Transaction
		if req.ReadVersion != nil {
			tx, err = tbl.StartTransactionAt(ctx, *req.ReadVersion)
		} else {
			tx, err = tbl.StartTransaction(ctx)
		}
		if err != nil {
			writeError(ctx, w, "failed to start transaction", err)
			return
		}
		version, err := tx.Commit(ctx, acts, table.Operation{
			Name:        req.Operation,
			Parameters:  req.Parameters,
			BlindAppend: req.BlindAppend,
		})
		if err != nil {
			writeError(ctx, w, "failed to commit", err)
			return
		}
		httputil.JSON(ctx, w, CommitResponse{Version: version})
	}
}
