// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"path/filepath"

	"github.com/oneconcern/coldstore/pkg/archive"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var restoreCmd = &cobra.Command{
	Use:   "restore --output DIR paths...",
	Short: "Restore archived files",
	Long: `Restore archived files and directory trees.

Each path is restored under the output directory, as a child named after the last
element of the path. Everything archived below a directory is restored with it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		s, err := openSession(ctx)
		if err != nil {
			wrapFatalln("start", err)
			return nil
		}

		var batchErr error
		for _, path := range args {
			abs, err := filepath.Abs(path)
			if err != nil {
				batchErr = multierr.Append(batchErr, err)
				continue
			}
			output := filepath.Join(params.restore.output, filepath.Base(abs))
			report, err := s.engine.RestoreMany(ctx, abs, output)
			s.logger.Info("restored",
				zap.String("path", abs),
				zap.String("output", output),
				zap.Int64("restored", report.Restored),
				zap.Int64("failed", report.Failed),
			)
			if err != nil {
				batchErr = multierr.Append(batchErr, err)
				if archive.IsFatal(err) {
					break
				}
			}
		}

		if err = s.close(ctx, batchErr); err != nil {
			wrapFatalln("restore", err)
		}
		return nil
	},
}

func init() {
	requiredFlags := []string{addRestoreOutputFlag(restoreCmd.Flags())}
	for _, flag := range requiredFlags {
		if err := restoreCmd.MarkFlagRequired(flag); err != nil {
			logFatalln(err)
		}
	}
	rootCmd.AddCommand(restoreCmd)
}
