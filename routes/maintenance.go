package routes

import (
	"net/http"
	"strconv"

	"github.com/wkalt/tablelog/checkpoint"
	"github.com/wkalt/tablelog/table"
	"github.com/wkalt/tablelog/txlog"
	"github.com/wkalt/tablelog/util/httputil"
	"github.com/wkalt/tablelog/util/log"
)

// CheckpointResponse summarizes a written checkpoint.
type CheckpointResponse struct {
	Version    int64 `json:"version"`
	Files      int   `json:"files"`
	Tombstones int   `json:"tombstones"`
}

func newCheckpointHandler(catalog *table.Catalog) http.HandlerFunc {
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
		log.Infow(ctx, "checkpoint request", "version", version)
		var cp *checkpoint.Checkpoint
		if version == txlog.NoVersion {
			cp, err = tbl.Checkpoint(ctx)
		} else {
			cp, err = tbl.CheckpointAt(ctx, version)
		}
		if err != nil {
			writeError(ctx, w, "failed to checkpoint", err)
			return
		}
		httputil.JSON(ctx, w, CheckpointResponse{
			Version:    cp.Version,
			Files:      len(cp.Files),
			Tombstones: len(cp.Tombstones),
		})
	}
}

// CleanupResponse lists the artifacts a cleanup deleted, or would delete in
// a dry run.
type CleanupResponse struct {
	DryRun     bool     `json:"dryRun"`
	Checkpoint *int64   `json:"checkpoint,omitempty"`
	Deleted    []string `json:"deleted"`
	Absent     []string `json:"absent,omitempty"`
}

func newCleanupHandler(catalog *table.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, tbl, ok := resolveTable(w, r, catalog)
		if !ok {
			return
		}
		dryRun := false
		if s := r.URL.Query().Get("dryRun"); s != "" {
			var err error
			if dryRun, err = strconv.ParseBool(s); err != nil {
				httputil.BadRequest(ctx, w, "invalid dryRun: %s", err)
				return
			}
		}
		log.Infow(ctx, "cleanup request", "dryRun", dryRun)
		resp := CleanupResponse{DryRun: dryRun, Deleted: []string{}}
		if dryRun {
			planned, err := tbl.PlanCleanup(ctx)
			if err != nil {
				writeError(ctx, w, "failed to plan cleanup", err)
				return
			}
			for _, a := range planned {
				resp.Deleted = append(resp.Deleted, a.Name)
			}
			httputil.JSON(ctx, w, resp)
			return
		}
		report, err := tbl.CleanUpExpiredLogs(ctx)
		if err != nil {
			writeError(ctx, w, "failed to clean up", err)
			return
		}
		if report.Checkpoint != txlog.NoVersion {
			resp.Checkpoint = &report.Checkpoint
		}
		for _, a := range report.Deleted {
			resp.Deleted = append(resp.Deleted, a.Name)
		}
		for _, a := range report.Absent {
			resp.Absent = append(resp.Absent, a.Name)
		}
		httputil.JSON(ctx, w, resp)
	}
}

// VerifyResponse reports a successful checkpoint verification.
type VerifyResponse struct {
	Version int64 `json:"version"`
	OK      bool  `json:"ok"`
}

func newVerifyHandler(catalog *table.Catalog) http.HandlerFunc {
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
		if version == txlog.NoVersion {
			version, err = tbl.LatestCheckpoint(ctx)
			if err != nil {
				writeError(ctx, w, "failed to find checkpoint", err)
				return
			}
		}
		log.Infow(ctx, "verify request", "version", version)
		if err := tbl.VerifyCheckpoint(ctx, version); err != nil {
			writeError(ctx, w, "checkpoint verification failed", err)
			return
		}
		httputil.JSON(ctx, w, VerifyResponse{Version: version, OK: true})
	}
}
