// Copyright © 2018 One Concern

package cmd

import (
	"bufio"
	"context"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/coldstore/pkg/config"
	"github.com/oneconcern/coldstore/pkg/crawler"
	"github.com/oneconcern/coldstore/pkg/dlogger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl ROOT",
	Short: "Export the metadata of a directory tree",
	Long: `Describe all files under a directory: ownership, permissions, times, size and
SHA-512 checksum. One JSON document is written per file.

Nothing is uploaded, and no configuration besides the log level is needed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		logger, err := dlogger.GetLogger(viper.GetString(config.KeyLogLevel))
		if err != nil {
			wrapFatalln("log level", err)
			return nil
		}

		var out io.Writer = os.Stdout
		if params.crawl.out != "" {
			f, err := os.Create(params.crawl.out)
			if err != nil {
				wrapFatalln("create metadata export", err)
				return nil
			}
			defer func() {
				_ = f.Close()
			}()
			out = f
		}

		count, err := exportMetadata(ctx, crawler.New(crawler.Logger(logger)), args[0], out)
		if err != nil {
			wrapFatalln("export metadata", err)
			return nil
		}
		logger.Info("crawl done", zap.String("root", args[0]), zap.Int("files", count))
		return nil
	},
}

// exportMetadata writes one json document per file found under root
func exportMetadata(ctx context.Context, c *crawler.Crawler, root string, out io.Writer) (int, error) {
	buffered := bufio.NewWriter(out)
	stream := jsoniter.NewStream(jsoniter.ConfigCompatibleWithStandardLibrary, buffered, 4096)

	count := 0
	for meta := range c.StatAll(ctx, root) {
		stream.WriteVal(meta)
		stream.WriteRaw("\n")
		if stream.Error != nil {
			return count, stream.Error
		}
		count++
	}
	if err := stream.Flush(); err != nil {
		return count, err
	}
	return count, buffered.Flush()
}

func init() {
	addCrawlOutFlag(crawlCmd.Flags())
	rootCmd.AddCommand(crawlCmd)
}
