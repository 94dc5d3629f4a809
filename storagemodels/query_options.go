/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"time"
)

// QueryOptions configures paging behavior of a query pager
type QueryOptions struct {
	PageSize        int32               // Documents per page (default: 100)
	Parameters      []QueryParameter    // Extra "@param" bindings appended to the QuerySpec
	ProgressHandler func(QueryProgress) // Optional callback after each page
}

// QueryProgress tracks how far a query has been drained
type QueryProgress struct {
	ItemsRead     int64     // Total documents read
	PagesRead     int       // Total pages read
	RequestCharge float64   // Accumulated request units
	StartTime     time.Time // When the first page was requested
}

// QueryOption is a functional option for configuring queries
type QueryOption func(*QueryOptions)

// DefaultQueryOptions returns default query options
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{
		PageSize: 100,
	}
}

// ApplyQueryOptions folds opts over the defaults.
func ApplyQueryOptions(opts ...QueryOption) QueryOptions {
	options := DefaultQueryOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.PageSize <= 0 {
		options.PageSize = DefaultQueryOptions().PageSize
	}
	return options
}

// WithPageSize sets the number of documents requested per page
func WithPageSize(size int32) QueryOption {
	return func(opts *QueryOptions) {
		opts.PageSize = size
	}
}

// WithParameters adds "@param" bindings
func WithParameters(params ...QueryParameter) QueryOption {
	return func(opts *QueryOptions) {
		opts.Parameters = append(opts.Parameters, params...)
	}
}

// WithProgressHandler sets a progress callback
func WithProgressHandler(handler func(QueryProgress)) QueryOption {
	return func(opts *QueryOptions) {
		opts.ProgressHandler = handler
	}
}
