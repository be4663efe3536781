// ABOUTME: Migration subcommand moving log mappings from SQLite to PostgreSQL
// ABOUTME: Provides dry-run and backup capabilities for a safe switch of backends
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/harperreed/callbridge/db"
	"github.com/harperreed/callbridge/handlers"
	"github.com/spf13/cobra"
)

// MigrationReport counts what a migration copied.
type MigrationReport struct {
	CallLogs    int
	MessageLogs int
	// Skipped mappings already existed in the target.
	Skipped int
}

// NewMigrateCommand creates the migrate-logs command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var dryRun, backup bool

	cmd := &cobra.Command{
		Use:   "migrate-logs",
		Short: "Copy call and message log mappings from SQLite into PostgreSQL",
		Long: `Copy the call and message log mappings of the SQLite database into the
PostgreSQL store named by database.postgres_dsn. Mappings already present in
PostgreSQL are skipped, so the command can be re-run safely.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd, func(ctx context.Context, app *App) error {
				if app.pgPool == nil {
					return errors.New("database.postgres_dsn is not configured")
				}
				if backup && !dryRun {
					path, err := backupFile(app.cfg.Database.Path)
					if err != nil {
						return err
					}
					app.logger.Info("backup created", "path", path)
				}
				report, err := MigrateLogs(ctx, app.logger,
					db.NewCallLogRepository(app.sqlDB), db.NewMessageLogRepository(app.sqlDB),
					app.CallLogs, app.MessageLogs, dryRun)
				if err != nil {
					return err
				}
				prefix := "copied "
				if dryRun {
					prefix = "[DRY RUN] would copy "
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s%d call logs and %d message logs (%d already present)\n",
					prefix, report.CallLogs, report.MessageLogs, report.Skipped)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would happen without making changes")
	cmd.Flags().BoolVar(&backup, "backup", true, "copy the SQLite file before migrating")
	return cmd
}

// MigrateLogs copies every mapping of the source repositories into the targets.
// Mappings the target rejects as duplicates are counted as skipped.
func MigrateLogs(ctx context.Context, logger *slog.Logger,
	srcCalls *db.CallLogRepository, srcMessages *db.MessageLogRepository,
	dstCalls handlers.CallLogStore, dstMessages handlers.MessageLogStore, dryRun bool) (*MigrationReport, error) {
	calls, err := srcCalls.All(ctx)
	if err != nil {
		return nil, err
	}
	messages, err := srcMessages.All(ctx)
	if err != nil {
		return nil, err
	}

	report := &MigrationReport{}
	if dryRun {
		report.CallLogs = len(calls)
		report.MessageLogs = len(messages)
		return report, nil
	}

	for i := range calls {
		err := dstCalls.Create(ctx, &calls[i])
		switch {
		case errors.Is(err, db.ErrDuplicate):
			report.Skipped++
		case err != nil:
			return report, fmt.Errorf("failed to copy call log %s: %w", calls[i].SessionID, err)
		default:
			report.CallLogs++
		}
	}
	for i := range messages {
		err := dstMessages.Create(ctx, &messages[i])
		switch {
		case errors.Is(err, db.ErrDuplicate):
			report.Skipped++
		case err != nil:
			return report, fmt.Errorf("failed to copy message log %s: %w", messages[i].ID, err)
		default:
			report.MessageLogs++
		}
	}
	logger.Info("log mappings migrated", "call_logs", report.CallLogs, "message_logs", report.MessageLogs, "skipped", report.Skipped)
	return report, nil
}

func backupFile(path string) (string, error) {
	input, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read database: %w", err)
	}
	backupPath := fmt.Sprintf("%s.backup.%s", path, time.Now().Format("20060102-150405"))
	if err := os.WriteFile(backupPath, input, 0600); err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}
	return backupPath, nil
}
