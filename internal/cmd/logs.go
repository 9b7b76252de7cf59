package cmd

import (
	"fmt"
	"time"

	"github.com/routa-dev/routa/internal/logging"
	"github.com/spf13/cobra"
)

var (
	logsLevel      string
	logsPhase      string
	logsInstance   string
	logsSession    string
	logsContains   string
	logsFormat     string
	logsOutputPath string
)

var logsCmd = &cobra.Command{
	Use:   "logs <session-dir>",
	Short: "Inspect or export a session's debug.log",
	Long: `logs reads the debug.log written under a session directory (see
paths.session_dir) and filters or exports it. It operates on whatever the
logging package already wrote — rotated and gzip-compressed backups are
left alone; only the live debug.log is read.`,
	Args: cobra.ExactArgs(1),
	RunE: runLogsShow,
}

var logsExportCmd = &cobra.Command{
	Use:   "export <session-dir> <output-path>",
	Short: "Export a session's filtered log entries to json, text, or csv",
	Args:  cobra.ExactArgs(2),
	RunE:  runLogsExport,
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.AddCommand(logsExportCmd)

	for _, fs := range []*cobra.Command{logsCmd, logsExportCmd} {
		fs.Flags().StringVar(&logsLevel, "level", "", "minimum level to include (DEBUG, INFO, WARN, ERROR)")
		fs.Flags().StringVar(&logsPhase, "phase", "", "filter to entries from this phase")
		fs.Flags().StringVar(&logsInstance, "instance", "", "filter to entries from this instance id")
		fs.Flags().StringVar(&logsSession, "session", "", "filter to entries from this session id")
		fs.Flags().StringVar(&logsContains, "contains", "", "filter to entries whose message contains this substring")
	}
	logsExportCmd.Flags().StringVar(&logsFormat, "format", "json", "export format: json, text, or csv")
}

func logsFilter() logging.LogFilter {
	return logging.LogFilter{
		Level:           logsLevel,
		InstanceID:      logsInstance,
		Phase:           logsPhase,
		SessionID:       logsSession,
		MessageContains: logsContains,
	}
}

func runLogsShow(cmd *cobra.Command, args []string) error {
	entries, err := logging.AggregateLogs(args[0])
	if err != nil {
		return fmt.Errorf("routa logs: %w", err)
	}

	for _, e := range logging.FilterLogs(entries, logsFilter()) {
		fmt.Printf("[%s] %-5s %s", e.Timestamp.Format(time.RFC3339), e.Level, e.Message)
		if e.SessionID != "" {
			fmt.Printf(" session=%s", e.SessionID)
		}
		if e.Phase != "" {
			fmt.Printf(" phase=%s", e.Phase)
		}
		fmt.Println()
	}
	return nil
}

func runLogsExport(cmd *cobra.Command, args []string) error {
	entries, err := logging.AggregateLogs(args[0])
	if err != nil {
		return fmt.Errorf("routa logs export: %w", err)
	}

	filtered := logging.FilterLogs(entries, logsFilter())
	if err := logging.ExportLogEntries(filtered, args[1], logsFormat); err != nil {
		return fmt.Errorf("routa logs export: %w", err)
	}

	fmt.Printf("Exported %d entries to %s\n", len(filtered), args[1])
	return nil
}
