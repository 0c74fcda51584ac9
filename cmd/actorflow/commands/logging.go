package commands

import (
	"os"
	"path/filepath"

	btclog "github.com/btcsuite/btclog/v2"
	"github.com/spf13/cobra"

	"github.com/roasbeef/actorflow/internal/actor"
	"github.com/roasbeef/actorflow/internal/build"
	"github.com/roasbeef/actorflow/internal/builtin"
	"github.com/roasbeef/actorflow/internal/scheduler"
)

// schedulerSubsystem tags log lines emitted by internal/scheduler, mirroring
// the teacher's per-subsystem prefix convention (e.g. review.Subsystem).
const schedulerSubsystem = "SCHD"

// builtinSubsystem tags log lines emitted by internal/builtin's script-actor
// payloads.
const builtinSubsystem = "BLTN"

var (
	logDir         string
	maxLogFiles    int
	maxLogFileSize int
)

// logRotator is the rotating file writer installed by setupLogging, if file
// logging is enabled. Closed by the PersistentPostRun hook below.
var logRotator *build.RotatingLogWriter

func init() {
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", defaultLogDir(), "directory for rotating log files (empty to disable file logging)")
	rootCmd.PersistentFlags().IntVar(&maxLogFiles, "max-log-files", build.DefaultMaxLogFiles, "maximum number of rotated log files to keep")
	rootCmd.PersistentFlags().IntVar(&maxLogFileSize, "max-log-file-size", build.DefaultMaxLogFileSize, "maximum log file size in MB before rotation")

	rootCmd.PersistentPreRunE = setupLogging
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if logRotator != nil {
			_ = logRotator.Close()
		}
	}
}

// defaultLogDir mirrors runlog.DefaultPath's convention of rooting
// actorflow's on-disk state under the user's home directory.
func defaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".actorflow", "logs")
}

// setupLogging wires a HandlerSet-backed btclog logger at CLI startup,
// matching the teacher's cmd/substrated/main.go dual-stream (console + file)
// wiring, and installs it into every package that exposes a UseLogger hook.
func setupLogging(cmd *cobra.Command, args []string) error {
	handlers := []btclog.Handler{btclog.NewDefaultHandler(os.Stderr)}

	if logDir != "" {
		logRotator = build.NewRotatingLogWriter()
		err := logRotator.InitLogRotator(&build.LogRotatorConfig{
			LogDir:         logDir,
			MaxLogFiles:    maxLogFiles,
			MaxLogFileSize: maxLogFileSize,
			Filename:       "actorflow.log",
		})
		if err != nil {
			cmd.PrintErrf("failed to init log rotator: %v "+
				"(continuing without file logging)\n", err)
			logRotator = nil
		} else {
			handlers = append(handlers, btclog.NewDefaultHandler(logRotator))
		}
	}

	combinedHandler := build.NewHandlerSet(handlers...)

	rootLogger := btclog.NewSLogger(combinedHandler)
	actor.UseLogger(rootLogger)
	builtin.UseLogger(rootLogger.WithPrefix(builtinSubsystem))
	scheduler.UseLogger(rootLogger.WithPrefix(schedulerSubsystem))

	return nil
}
