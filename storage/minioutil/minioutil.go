package minioutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/minio/madmin-go"
	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	minio "github.com/minio/minio/cmd"
	"github.com/stretchr/testify/require"
	"github.com/wkalt/tablelog/util/testutils"
)

/*
An embedded minio server for tests that need real S3 semantics.
*/

////////////////////////////////////////////////////////////////////////////////

const (
	accessKeyID     = "minioadmin"
	secretAccessKey = "minioadmin"
	startupTimeout  = 10 * time.Second
)

// Server is a running minio server with a bucket created for the test.
type Server struct {
	Client *mclient.Client
	Bucket string
}

// NewServer starts a minio server on a random port and creates bucket on it.
// The server's storage is removed when the test completes.
func NewServer(t *testing.T, bucket string) *Server {
	t.Helper()
	ctx := context.Background()
	port, err := testutils.GetOpenPort()
	require.NoError(t, err)
	addr := fmt.Sprintf("localhost:%d", port)

	madm, err := madmin.New(addr, accessKeyID, secretAccessKey, false)
	require.NoError(t, err)

	tmpdir, err := os.MkdirTemp("", "tablelog-minio")
	require.NoError(t, err)

	go minio.Main([]string{"minio", "server", "--quiet", "--address", addr, tmpdir})

	start := time.Now()
	for {
		if _, err := madm.ServerInfo(ctx); err == nil {
			break
		}
		if time.Since(start) > startupTimeout {
			t.Fatal("timeout waiting for minio server to start")
		}
		time.Sleep(100 * time.Millisecond)
	}
	mc, err := mclient.New(addr, &mclient.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: false,
	})
	require.NoError(t, err)
	require.NoError(t, mc.MakeBucket(ctx, bucket, mclient.MakeBucketOptions{}))

	t.Cleanup(func() {
		require.NoError(t, os.RemoveAll(tmpdir))
		// minio calls os.Exit when stopped, so the stop is deferred until
		// the test binary is likely done.
		go func() {
			time.Sleep(5 * time.Second)
			if err := madm.ServiceStop(ctx); err != nil {
				t.Log(err)
			}
		}()
	})
	return &Server{Client: mc, Bucket: bucket}
}
