// Copyright © 2018 One Concern

// Package metrics declares the opencensus measures and views collected by coldstore.
//
// Measures are always recorded. Nothing is aggregated until views are registered
// with Register, and nothing leaves the process until some exporter is registered
// with opencensus by the caller.
package metrics

import (
	"context"
	"sync"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

const (
	// ResultOK tags a successful operation
	ResultOK = "ok"

	// ResultError tags a failed operation
	ResultError = "error"
)

var (
	// StoreOps counts object store operations
	StoreOps = stats.Int64("coldstore/store/ops", "number of object store operations", stats.UnitDimensionless)

	// StoreLatency measures the duration of object store operations
	StoreLatency = stats.Float64("coldstore/store/latency", "latency of object store operations", stats.UnitMilliseconds)

	// KeyOp tags the store operation (Has, Get, Put)
	KeyOp = tag.MustNewKey("op")

	// KeyResult tags the outcome of an operation
	KeyResult = tag.MustNewKey("result")

	// KeyStore tags the store backend
	KeyStore = tag.MustNewKey("store")

	// StoreOpsView aggregates operation counts
	StoreOpsView = &view.View{
		Name:        "coldstore/store/ops",
		Measure:     StoreOps,
		Description: "count of object store operations",
		TagKeys:     []tag.Key{KeyStore, KeyOp, KeyResult},
		Aggregation: view.Count(),
	}

	// StoreLatencyView aggregates latencies, in milliseconds
	StoreLatencyView = &view.View{
		Name:        "coldstore/store/latency",
		Measure:     StoreLatency,
		Description: "distribution of object store latencies",
		TagKeys:     []tag.Key{KeyStore, KeyOp},
		Aggregation: view.Distribution(1, 5, 10, 50, 100, 500, 1000, 5000, 30000),
	}

	registerOnce sync.Once
	registerErr  error
)

// Register the views declared by this package. It may be called several times.
func Register() error {
	registerOnce.Do(func() {
		registerErr = view.Register(StoreOpsView, StoreLatencyView)
	})
	return registerErr
}

// RecordStoreOp records the count and latency of a single store operation
func RecordStoreOp(ctx context.Context, store, op string, start time.Time, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	ms := float64(time.Since(start).Nanoseconds()) / 1e6
	_ = stats.RecordWithTags(ctx,
		[]tag.Mutator{
			tag.Upsert(KeyStore, store),
			tag.Upsert(KeyOp, op),
			tag.Upsert(KeyResult, result),
		},
		StoreOps.M(1), StoreLatency.M(ms),
	)
}
