/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"context"

	"github.com/suparena/familystore/storagemodels"
)

// Client is a connection handle to a document store account.
type Client interface {
	// CreateDatabaseIfNotExists returns the named database, creating it when absent.
	CreateDatabaseIfNotExists(ctx context.Context, id string) (Database, storagemodels.ResourceResponse, error)
	// Close releases the connection handle.
	Close() error
}

// Database groups containers.
type Database interface {
	ID() string
	// CreateContainerIfNotExists returns the named container, creating it when absent.
	CreateContainerIfNotExists(ctx context.Context, props storagemodels.ContainerProperties) (Container, storagemodels.ResourceResponse, error)
	// Delete removes the database and every container and document in it.
	Delete(ctx context.Context) (storagemodels.ResourceResponse, error)
}

// Container holds JSON documents sharded by a partition key.
type Container interface {
	ID() string
	PartitionKeyPath() string

	// CreateItem inserts doc under partitionKey. It fails with a ConflictError when a document
	// with the same id already exists in that partition.
	CreateItem(ctx context.Context, partitionKey string, doc []byte) (storagemodels.ItemResponse, error)

	ReadItem(ctx context.Context, partitionKey, id string) (storagemodels.ItemResponse, error)

	// NewQueryPager starts a read-only query. Pages are fetched lazily by NextPage.
	NewQueryPager(spec storagemodels.QuerySpec, opts ...storagemodels.QueryOption) Pager
}

// Pager walks the pages of a query result. A drained pager cannot be restarted;
// issue the query again instead.
type Pager interface {
	More() bool
	NextPage(ctx context.Context) (storagemodels.QueryPage, error)
}

// Options carries the connection settings a backend opener needs.
type Options struct {
	// Endpoint is the service URL. Optional for backends with a default endpoint.
	Endpoint string
	// Key is the account key (Cosmos) or secret access key (DynamoDB).
	Key string
	// AccessKeyID is the DynamoDB access key id.
	AccessKeyID string
	// Region is the DynamoDB region.
	Region string
}

// Opener constructs a Client for one backend.
type Opener func(ctx context.Context, opts Options) (Client, error)

// MergeParameters returns the parameters of spec followed by those added through options.
func MergeParameters(spec storagemodels.QuerySpec, options storagemodels.QueryOptions) []storagemodels.QueryParameter {
	if len(options.Parameters) == 0 {
		return spec.Parameters
	}
	params := make([]storagemodels.QueryParameter, 0, len(spec.Parameters)+len(options.Parameters))
	params = append(params, spec.Parameters...)
	return append(params, options.Parameters...)
}
