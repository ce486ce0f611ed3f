// Copyright © 2018 One Concern

// Package cmd implements the coldstore command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/oneconcern/coldstore/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "coldstore",
	Short: "Coldstore backs up files to an object store",
	Long: `Coldstore backs up directory trees to an S3-compatible object store.

File content is deduplicated, compressed then encrypted before it leaves the machine.
A catalog of all archived paths is kept, encrypted, in the same bucket.
`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		osExit(1)
	}
}

func init() {
	addConfigFileFlag(rootCmd.PersistentFlags())
	addLogLevelFlag(rootCmd.PersistentFlags())
	cobra.OnInitialize(initConfig)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	config.Setup(viper.GetViper(), params.root.configFile)
	if err := viper.BindPFlag(config.KeyLogLevel, rootCmd.PersistentFlags().Lookup(logLevelFlag)); err != nil {
		wrapFatalln("bind log level flag", err)
		return
	}
	if err := config.Read(viper.GetViper()); err != nil {
		wrapFatalln("read configuration", err)
		return
	}
	if used := viper.ConfigFileUsed(); used != "" {
		infoLogger.Println("Using config file:", used)
	}
}
