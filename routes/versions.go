package routes

import (
	"net/http"
	"time"

	"github.com/wkalt/tablelog/table"
	"github.com/wkalt/tablelog/util/httputil"
)

// ArtifactResponse describes a log entry or checkpoint.
type ArtifactResponse struct {
	Version      int64     `json:"version"`
	Kind         string    `json:"kind"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

func newVersionsHandler(catalog *table.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, tbl, ok := resolveTable(w, r, catalog)
		if !ok {
			return
		}
		artifacts, err := tbl.Log().ListArtifacts(ctx)
		if err != nil {
			writeError(ctx, w, "failed to list versions", err)
			return
		}
		resp := make([]ArtifactResponse, 0, len(artifacts))
		for _, a := range artifacts {
			resp = append(resp, ArtifactResponse{
				Version:      a.Version,
				Kind:         a.Kind.String(),
				Name:         a.Name,
				Size:         a.Size,
				LastModified: a.LastModified.UTC(),
			})
		}
		httputil.JSON(ctx, w, resp)
	}
}
