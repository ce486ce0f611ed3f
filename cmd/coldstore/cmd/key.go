// Copyright © 2018 One Concern

package cmd

import (
	"fmt"

	"github.com/oneconcern/coldstore/pkg/codec"
	"github.com/spf13/cobra"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Commands to manage encryption keys",
}

var keyGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate an encryption token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := codec.GenerateKey()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), key)
		return err
	},
}

func init() {
	keyCmd.AddCommand(keyGenerateCmd)
	rootCmd.AddCommand(keyCmd)
}
