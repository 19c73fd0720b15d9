package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"
	"github.com/wkalt/tablelog/commitstore"
	"github.com/wkalt/tablelog/storage"
	"github.com/wkalt/tablelog/table"
)

/*
The cmd package is the tablelog command line. Maintenance commands operate on
storage directly; the server command exposes the same tables over HTTP.
*/

////////////////////////////////////////////////////////////////////////////////

var (
	logLevel     string
	tablePrefix  string
	commitDBPath string

	// Directory storage provider options
	dataDir string

	// S3 storage provider options
	s3Endpoint  string
	s3AccessKey string
	s3SecretKey string
	s3Bucket    string
	s3UseTLS    bool
	s3Region    string
)

var rootCmd = &cobra.Command{
	Use:   "tablelog",
	Short: "Table log maintenance and server",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := parseLogLevel(logLevel)
		checkErr(err)
		slog.SetLogLoggerLevel(level)
	},
}

// Execute runs the root command.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func bailf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func checkErr(err error) {
	if err != nil {
		bailf("error: %v", err)
	}
}

func parseLogLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", s)
	}
}

// openStore builds the storage provider selected by the storage flags.
func openStore() storage.Provider {
	s3requested := s3Endpoint != "" ||
		s3AccessKey != "" ||
		s3SecretKey != "" ||
		s3Bucket != ""
	if dataDir != "" && s3requested {
		bailf("cannot specify both --data-dir and S3 options")
	}
	if dataDir == "" && !s3requested {
		bailf("must specify either --data-dir or S3 options")
	}
	if dataDir != "" {
		return storage.NewDirectoryStore(dataDir)
	}
	mc, err := minio.New(s3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(s3AccessKey, s3SecretKey, ""),
		Secure: s3UseTLS,
		Region: s3Region,
	})
	if err != nil {
		bailf("error creating S3 client: %s", err)
	}
	return storage.NewS3Store(mc, s3Bucket)
}

// openTable opens the named table with the shared flags applied.
func openTable(ctx context.Context, name string, opts ...table.Option) *table.Table {
	if commitDBPath != "" {
		db, err := sql.Open("sqlite3", commitDBPath+"?_journal=WAL&mode=rwc")
		checkErr(err)
		cs, err := commitstore.NewSQLCommitStore(ctx, db)
		checkErr(err)
		opts = append(opts, table.WithCommitStore(cs))
	}
	catalog := table.NewCatalog(openStore(), tablePrefix, opts...)
	tbl, err := catalog.Table(ctx, name)
	checkErr(err)
	return tbl
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "warn", "Log level")
	rootCmd.PersistentFlags().StringVarP(&tablePrefix, "prefix", "", "tables", "Storage prefix of the tables")
	rootCmd.PersistentFlags().StringVarP(&commitDBPath, "commit-db", "", "", "Sqlite database coordinating commits")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "Data directory (for directory storage)")

	rootCmd.PersistentFlags().StringVar(&s3Endpoint, "s3-endpoint", "", "S3 endpoint (for S3 storage)")
	rootCmd.PersistentFlags().StringVar(&s3AccessKey, "s3-access-key-id", "", "S3 access key ID (for S3 storage)")
	rootCmd.PersistentFlags().StringVar(&s3SecretKey, "s3-secret-key", "", "S3 secret key (for S3 storage)")
	rootCmd.PersistentFlags().StringVar(&s3Bucket, "s3-bucket", "", "S3 bucket (for S3 storage)")
	rootCmd.PersistentFlags().BoolVarP(&s3UseTLS, "s3-tls", "t", false, "Use TLS (for S3 storage)")
	rootCmd.PersistentFlags().StringVar(&s3Region, "s3-region", "", "S3 region")
}
