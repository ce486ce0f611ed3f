// Copyright © 2018 One Concern

package cmd

import (
	"github.com/oneconcern/coldstore/pkg/dlogger"
	"github.com/spf13/pflag"
)

type flagsT struct {
	root struct {
		configFile string
		logLevel   string
	}
	restore struct {
		output string
	}
	crawl struct {
		out string
	}
	config struct {
		file string
	}
}

var params flagsT

const (
	configFileFlag = "config"
	logLevelFlag   = "log-level"
	outputFlag     = "output"
	outFlag        = "out"
	fileFlag       = "file"
)

func addConfigFileFlag(fs *pflag.FlagSet) string {
	fs.StringVar(&params.root.configFile, configFileFlag, "", "Path to a config file (defaults to $COLDSTORE_CONFIG, then coldstore.yaml in ., $HOME/.coldstore, /etc/coldstore)")
	return configFileFlag
}

func addLogLevelFlag(fs *pflag.FlagSet) string {
	fs.StringVar(&params.root.logLevel, logLevelFlag, dlogger.LogLevelInfo, "The logging level: debug, info, warn, error or none")
	return logLevelFlag
}

func addRestoreOutputFlag(fs *pflag.FlagSet) string {
	fs.StringVarP(&params.restore.output, outputFlag, "o", "", "Directory where restored files are written")
	return outputFlag
}

func addCrawlOutFlag(fs *pflag.FlagSet) string {
	fs.StringVar(&params.crawl.out, outFlag, "", "File receiving the metadata export (defaults to stdout)")
	return outFlag
}

func addConfigOutFileFlag(fs *pflag.FlagSet) string {
	fs.StringVarP(&params.config.file, fileFlag, "f", "", "File receiving the generated config (defaults to stdout)")
	return fileFlag
}
