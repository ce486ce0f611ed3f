// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"fmt"

	"github.com/oneconcern/coldstore/pkg/archive"
	"github.com/oneconcern/coldstore/pkg/catalog"
	"github.com/oneconcern/coldstore/pkg/codec"
	"github.com/oneconcern/coldstore/pkg/config"
	"github.com/oneconcern/coldstore/pkg/crawler"
	"github.com/oneconcern/coldstore/pkg/dlogger"
	"github.com/oneconcern/coldstore/pkg/metrics"
	"github.com/oneconcern/coldstore/pkg/storage"
	"github.com/oneconcern/coldstore/pkg/storage/localfs"
	"github.com/oneconcern/coldstore/pkg/storage/sthree"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// session holds everything needed to upload or restore files
type session struct {
	settings config.Settings
	logger   *zap.Logger
	codec    *codec.Codec
	store    storage.Store
	catalog  *catalog.Catalog
	engine   *archive.Engine
}

func loadSettings() (config.Settings, error) {
	return config.Load(viper.GetViper())
}

func newLogger(settings config.Settings) *zap.Logger {
	return dlogger.MustGetLogger(settings.LogLevel)
}

func newStore(settings config.Settings, logger *zap.Logger) (storage.Store, error) {
	var (
		store storage.Store
		err   error
	)
	switch settings.Store {
	case config.StoreLocalFS:
		store, err = localfs.NewAtomic(afero.NewBasePathFs(afero.NewOsFs(), settings.LocalFSPath))
	default:
		opts := []sthree.Option{
			sthree.Region(settings.S3Region),
		}
		if settings.S3URL != "" {
			opts = append(opts, sthree.Endpoint(settings.S3URL))
		}
		if settings.S3AccessKey != "" {
			opts = append(opts, sthree.StaticCredentials(settings.S3AccessKey, settings.S3SecretKey))
		}
		store, err = sthree.New(sthree.Bucket(settings.S3Bucket), opts...)
	}
	if err != nil {
		return nil, err
	}

	if err = metrics.Register(); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	return storage.Instrument(store, logger), nil
}

// openSession builds the engine and loads the catalog
func openSession(ctx context.Context) (*session, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	logger := newLogger(settings)

	store, err := newStore(settings, logger)
	if err != nil {
		return nil, err
	}

	c, err := codec.New(settings.EncryptionToken)
	if err != nil {
		return nil, config.ErrConfiguration.Wrap(err)
	}

	cat := catalog.New(store, c, catalog.Logger(logger))
	if err = cat.Load(ctx); err != nil {
		c.Close()
		return nil, err
	}

	engine := archive.New(store, cat, c,
		archive.Logger(logger),
		archive.ChunkSize(settings.ChunkSizeBytes()),
		archive.UploadWorkers(settings.UploadWorkers),
		archive.RestoreWorkers(settings.RestoreWorkers),
		archive.Crawler(crawler.New(crawler.Logger(logger))),
	)

	return &session{
		settings: settings,
		logger:   logger,
		codec:    c,
		store:    store,
		catalog:  cat,
		engine:   engine,
	}, nil
}

// close flushes the catalog, combining any flush failure with the outcome of the command
func (s *session) close(ctx context.Context, err error) error {
	err = multierr.Append(err, s.catalog.Flush(ctx))
	s.codec.Close()
	_ = s.logger.Sync()
	return err
}
