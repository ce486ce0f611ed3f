// Copyright © 2018 One Concern

package storage

import (
	"context"
	"io"
	"time"

	"github.com/oneconcern/coldstore/pkg/metrics"
	"go.uber.org/zap"
)

// Instrument decorates a store with debug logs and opencensus metrics
func Instrument(store Store, logger *zap.Logger) Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &instrumentedStore{
		store: store,
		name:  store.String(),
		l:     logger.With(zap.String("store", store.String())),
	}
}

type instrumentedStore struct {
	store Store
	name  string
	l     *zap.Logger
}

func (i *instrumentedStore) String() string {
	return i.store.String()
}

func (i *instrumentedStore) Has(ctx context.Context, key string) (has bool, err error) {
	defer func(t0 time.Time) {
		metrics.RecordStoreOp(ctx, i.name, "Has", t0, err)
		i.l.Debug("storage has", zap.String("key", key), zap.Bool("found", has), zap.Error(err))
	}(time.Now())

	return i.store.Has(ctx, key)
}

func (i *instrumentedStore) Get(ctx context.Context, key string) (rdr io.ReadCloser, err error) {
	defer func(t0 time.Time) {
		metrics.RecordStoreOp(ctx, i.name, "Get", t0, err)
		i.l.Debug("storage get", zap.String("key", key), zap.Error(err))
	}(time.Now())

	return i.store.Get(ctx, key)
}

func (i *instrumentedStore) Put(ctx context.Context, key string, rdr io.Reader) (err error) {
	defer func(t0 time.Time) {
		metrics.RecordStoreOp(ctx, i.name, "Put", t0, err)
		i.l.Debug("storage put", zap.String("key", key), zap.Error(err))
	}(time.Now())

	return i.store.Put(ctx, key, rdr)
}
