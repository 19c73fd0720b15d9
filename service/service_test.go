package service_test

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkalt/tablelog/clock"
	"github.com/wkalt/tablelog/service"
	"github.com/wkalt/tablelog/storage"
	"github.com/wkalt/tablelog/util/testutils"
)

func TestService(t *testing.T) {
	cases := []struct {
		assertion string
		opts      func(t *testing.T) []service.Option
	}{
		{
			"exclusive create",
			func(*testing.T) []service.Option { return nil },
		},
		{
			"sqlite commit store",
			func(t *testing.T) []service.Option {
				t.Helper()
				return []service.Option{
					service.WithCommitDatabasePath(filepath.Join(t.TempDir(), "commits.db")),
					service.WithCheckpointInterval(1),
				}
			},
		},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			port, err := testutils.GetOpenPort()
			require.NoError(t, err)
			opts := append([]service.Option{
				service.WithPort(port),
				service.WithStorageProvider(storage.NewMemStore(clock.NewSystemClock())),
			}, c.opts(t)...)

			done := make(chan error, 1)
			go func() {
				done <- service.NewService().Start(ctx, opts...)
			}()

			url := fmt.Sprintf("http://localhost:%d/tables/events", port)
			body := `{"operation": "WRITE", "actions": [{"add": {"path": "a", "size": 1, "dataChange": true}}]}`
			require.Eventually(t, func() bool {
				resp, err := http.Post(url+"/commits", "application/json", strings.NewReader(body)) // nolint:noctx
				if err != nil {
					return false
				}
				defer resp.Body.Close()
				return resp.StatusCode == http.StatusOK
			}, 5*time.Second, 20*time.Millisecond)

			resp, err := http.Get(url + "/snapshot") // nolint:noctx
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			cancel()
			select {
			case err := <-done:
				require.NoError(t, err)
			case <-time.After(15 * time.Second):
				t.Fatal("service did not stop")
			}
		})
	}
}

func TestStartRequiresStorage(t *testing.T) {
	err := service.NewService().Start(context.Background())
	require.ErrorContains(t, err, "storage provider is required")
}
