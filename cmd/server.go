package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/wkalt/tablelog/service"
)

var (
	serverPort               int
	serverCheckpointInterval int64
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the table server",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		level := slog.LevelInfo
		if cmd.Flags().Changed("log-level") {
			var err error
			level, err = parseLogLevel(logLevel)
			checkErr(err)
		}
		opts := []service.Option{
			service.WithPort(serverPort),
			service.WithLogLevel(level),
			service.WithStorageProvider(openStore()),
			service.WithTablePrefix(tablePrefix),
			service.WithCommitDatabasePath(commitDBPath),
		}
		if cmd.Flags().Changed("checkpoint-interval") {
			opts = append(opts, service.WithCheckpointInterval(serverCheckpointInterval))
		}
		if err := service.NewService().Start(ctx, opts...); err != nil {
			bailf("Shutdown error: %s", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.PersistentFlags().IntVarP(&serverPort, "port", "p", 8089, "Port to listen on")
	serverCmd.PersistentFlags().Int64VarP(&serverCheckpointInterval, "checkpoint-interval", "", 0,
		"Checkpoint every n commits, overriding table properties (0 disables)")
}
