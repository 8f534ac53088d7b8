package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"library-system/library"
)

var (
	dbPath  string
	logPath string
)

// newLogger builds the process logger. With no --log flag events go to
// stderr; with one they are appended to the file with synchronized writes.
func newLogger() (zerolog.Logger, func(), error) {
	if logPath == "" {
		w := zerolog.ConsoleWriter{Out: os.Stderr}
		return zerolog.New(w).With().Timestamp().Logger(), func() {}, nil
	}
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o664)
	if err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := zerolog.New(zerolog.SyncWriter(f)).With().Timestamp().Logger()
	return logger, func() { f.Close() }, nil
}

func openManager() (*library.LibraryManager, func(), error) {
	logger, closeLog, err := newLogger()
	if err != nil {
		return nil, nil, err
	}
	mgr, err := library.NewLibraryManager(dbPath, logger)
	if err != nil {
		closeLog()
		return nil, nil, err
	}
	return mgr, func() { mgr.Close(); closeLog() }, nil
}

var rootCmd = &cobra.Command{
	Use:   "library",
	Short: "Library inventory and lending system",
	RunE: func(cmd *cobra.Command, args []string) error {
		return shellCmd.RunE(cmd, args)
	},
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Run the interactive login shell",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, cleanup, err := openManager()
		if err != nil {
			return err
		}
		defer cleanup()
		return runShell(mgr)
	},
}

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the catalog, registry and ledger as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, cleanup, err := openManager()
		if err != nil {
			return err
		}
		defer cleanup()

		out := os.Stdout
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			defer f.Close()
			out = f
		}
		return mgr.ExportSnapshot(out)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "library.db", "path to the SQLite database")
	rootCmd.PersistentFlags().StringVar(&logPath, "log", "", "append structured logs to this file instead of stderr")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "write the snapshot to this file instead of stdout")
	rootCmd.AddCommand(shellCmd, exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
