/*
Package datastore defines the client capability every document store backend provides.

The capability is deliberately narrow; it is what a provisioning and demo-data workflow needs:

	type Client interface {
	    CreateDatabaseIfNotExists(ctx context.Context, id string) (Database, storagemodels.ResourceResponse, error)
	    Close() error
	}

	type Database interface {
	    ID() string
	    CreateContainerIfNotExists(ctx context.Context, props storagemodels.ContainerProperties) (Container, storagemodels.ResourceResponse, error)
	    Delete(ctx context.Context) (storagemodels.ResourceResponse, error)
	}

	type Container interface {
	    ID() string
	    PartitionKeyPath() string
	    CreateItem(ctx context.Context, partitionKey string, doc []byte) (storagemodels.ItemResponse, error)
	    ReadItem(ctx context.Context, partitionKey, id string) (storagemodels.ItemResponse, error)
	    NewQueryPager(spec storagemodels.QuerySpec, opts ...storagemodels.QueryOption) Pager
	}

Documents cross the interface as JSON. The generic helpers CreateItem, ReadItem and QueryItems
encode and decode typed values on top of it.

Implementations:
  - cosmos: Azure Cosmos DB
  - ddb: DynamoDB, one table per container
  - mock: in-memory store for tests and dry runs

Backends register an Opener under a name so programs can pick one from configuration:

	client, err := datastore.Open(ctx, "dynamodb", datastore.Options{Region: "us-east-1"})
*/
package datastore
