package routes

import (
	"net/http/httptest"
	"testing"

	"github.com/wkalt/tablelog/table"
)

// MakeTestRoutes starts a test server over the catalog and returns its URL.
// The server is closed when the test ends.
func MakeTestRoutes(t *testing.T, catalog *table.Catalog) string {
	t.Helper()
	srv := httptest.NewServer(MakeRoutes(catalog))
	t.Cleanup(srv.Close)
	return srv.URL
}
