// Copyright © 2018 One Concern

package cmd

import (
	"io"
	"os"

	"github.com/oneconcern/coldstore/pkg/config"
	"github.com/spf13/cobra"
)

// configCmd represents the config related commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Commands to manage the configuration",
}

var configGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a configuration template",
	Long: `Generate a configuration template, with a fresh encryption token.

Placeholders must be filled out before the configuration can be used. Keep the
encryption token safe: archived content cannot be restored without it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeTemplate(params.config.file, cmd.OutOrStdout())
	},
}

func writeTemplate(file string, stdout io.Writer) error {
	tpl, err := config.Template()
	if err != nil {
		return err
	}
	raw, err := tpl.Marshal()
	if err != nil {
		return err
	}
	if file == "" {
		_, err = stdout.Write(raw)
		return err
	}
	return os.WriteFile(file, raw, 0o600)
}

func init() {
	addConfigOutFileFlag(configGenerateCmd.Flags())
	configCmd.AddCommand(configGenerateCmd)
	rootCmd.AddCommand(configCmd)
}
