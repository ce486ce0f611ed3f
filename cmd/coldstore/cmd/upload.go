// Copyright © 2018 One Concern

package cmd

import (
	"context"

	"github.com/oneconcern/coldstore/pkg/archive"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var uploadCmd = &cobra.Command{
	Use:   "upload [paths...]",
	Short: "Upload files and directories",
	Long: `Upload files and directory trees to the object store.

Without arguments, the backup-directories from the configuration are uploaded.
Paths already in the catalog are skipped.`,
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

		paths := args
		if len(paths) == 0 {
			paths = s.settings.BackupDirectories
		}
		if len(paths) == 0 {
			s.logger.Warn("nothing to upload: pass some paths or set backup-directories")
		}

		var batchErr error
		for _, path := range paths {
			report, err := s.engine.UploadMany(ctx, path)
			s.logger.Info("uploaded directory",
				zap.String("path", path),
				zap.Int64("uploaded", report.Uploaded),
				zap.Int64("skipped", report.Skipped),
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
			wrapFatalln("upload", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}
