package routes

import (
	"net/http"
	"strconv"

	"github.com/relvacode/iso8601"
	"github.com/wkalt/tablelog/actions"
	"github.com/wkalt/tablelog/snapshot"
	"github.com/wkalt/tablelog/table"
	"github.com/wkalt/tablelog/txlog"
	"github.com/wkalt/tablelog/util/httputil"
	"github.com/wkalt/tablelog/util/log"
)

// SnapshotResponse is the state of a table at a version.
type SnapshotResponse struct {
	Version    int64             `json:"version"`
	Files      []actions.AddFile `json:"files"`
	Tombstones int               `json:"tombstones"`
	Metadata   *actions.Metadata `json:"metadata,omitempty"`
	Protocol   *actions.Protocol `json:"protocol,omitempty"`
	Checksum   string            `json:"checksum"`
}

func newSnapshotHandler(catalog *table.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, tbl, ok := resolveTable(w, r, catalog)
		if !ok {
			return
		}
		version, err := parseVersion(r)
		if err != nil {
			httputil.BadRequest(ctx, w, "invalid request: %s", err)
			return
		}
		timestamp := r.URL.Query().Get("timestamp")
		if timestamp != "" && version != txlog.NoVersion {
			httputil.BadRequest(ctx, w, "invalid request: version and timestamp are exclusive")
			return
		}
		glob := r.URL.Query().Get("glob")
		if glob == "" {
			glob = "**"
		}
		log.Infow(ctx, "snapshot request", "version", version, "timestamp", timestamp, "glob", glob)

		var state *snapshot.State
		switch {
		case timestamp != "":
			ts, err := iso8601.ParseString(timestamp)
			if err != nil {
				httputil.BadRequest(ctx, w, "invalid timestamp: %s", err)
				return
			}
			state, err = tbl.SnapshotAtTimestamp(ctx, ts)
			if err != nil {
				writeError(ctx, w, "failed to reconstruct snapshot", err)
				return
			}
		case version != txlog.NoVersion:
			state, err = tbl.SnapshotAt(ctx, version)
			if err != nil {
				writeError(ctx, w, "failed to reconstruct snapshot", err)
				return
			}
		default:
			state, err = tbl.Update(ctx)
			if err != nil {
				writeError(ctx, w, "failed to update table", err)
				return
			}
		}
		files, err := state.Glob(glob)
		if err != nil {
			httputil.BadRequest(ctx, w, "invalid glob: %s", err)
			return
		}
		checksum, err := state.Checksum()
		if err != nil {
			httputil.InternalServerError(ctx, w, "failed to compute checksum: %s", err)
			return
		}
		httputil.JSON(ctx, w, SnapshotResponse{
			Version:    state.Version,
			Files:      files,
			Tombstones: state.TombstoneCount(),
			Metadata:   state.Metadata,
			Protocol:   state.Protocol,
			Checksum:   strconv.FormatUint(checksum, 16),
		})
	}
}
