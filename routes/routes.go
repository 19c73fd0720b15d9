package routes

import (
	"github.com/gorilla/mux"
	"github.com/wkalt/tablelog/table"
	"github.com/wkalt/tablelog/util/mw"
)

/*
The routes package exposes administration of the tables in a catalog over
HTTP. Every route is scoped to a table by name; tables that do not exist yet
are created by their first commit.
*/

////////////////////////////////////////////////////////////////////////////////

// MakeRoutes builds the router for a catalog.
func MakeRoutes(catalog *table.Catalog) *mux.Router {
	r := mux.NewRouter()
	r.Use(mw.WithRequestID, mw.WithRequestLogging)
	t := r.PathPrefix("/tables/{table}").Subrouter()
	t.HandleFunc("/snapshot", newSnapshotHandler(catalog)).Methods("GET")
	t.HandleFunc("/versions", newVersionsHandler(catalog)).Methods("GET")
	t.HandleFunc("/commits", newCommitHandler(catalog)).Methods("POST")
	t.HandleFunc("/checkpoint", newCheckpointHandler(catalog)).Methods("POST")
	t.HandleFunc("/cleanup", newCleanupHandler(catalog)).Methods("POST")
	t.HandleFunc("/verify", newVerifyHandler(catalog)).Methods("POST")
	return r
}
