/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package cosmos

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
	"github.com/goccy/go-json"
	"github.com/suparena/familystore/datastore"
	storeerrors "github.com/suparena/familystore/errors"
	"github.com/suparena/familystore/storagemodels"
)

// BackendName is the name the Cosmos DB backend registers under.
const BackendName = "cosmos"

func init() {
	if err := datastore.RegisterBackend(BackendName, Open); err != nil {
		panic(err)
	}
}

// Client wraps an azcosmos account client.
type Client struct {
	client   *azcosmos.Client
	endpoint string
}

// NewClient creates a key-authenticated client. No request is sent until the first operation.
func NewClient(opts datastore.Options) (*Client, error) {
	return newClient(opts, nil)
}

func newClient(opts datastore.Options, clientOpts *azcosmos.ClientOptions) (*Client, error) {
	if opts.Endpoint == "" {
		return nil, storeerrors.NewValidationError("endpoint", "Cosmos DB endpoint is required")
	}
	if opts.Key == "" {
		return nil, storeerrors.NewValidationError("key", "Cosmos DB account key is required")
	}

	cred, err := azcosmos.NewKeyCredential(opts.Key)
	if err != nil {
		return nil, storeerrors.NewConnectionError(opts.Endpoint, err)
	}
	client, err := azcosmos.NewClientWithKey(opts.Endpoint, cred, clientOpts)
	if err != nil {
		return nil, storeerrors.NewConnectionError(opts.Endpoint, err)
	}
	return &Client{client: client, endpoint: opts.Endpoint}, nil
}

// Open is the datastore.Opener for this backend.
func Open(_ context.Context, opts datastore.Options) (datastore.Client, error) {
	return NewClient(opts)
}

// Endpoint returns the account endpoint.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// CreateDatabaseIfNotExists creates the database, or reads it when the service answers 409.
func (c *Client) CreateDatabaseIfNotExists(ctx context.Context, id string) (datastore.Database, storagemodels.ResourceResponse, error) {
	if id == "" {
		return nil, storagemodels.ResourceResponse{}, storeerrors.NewValidationError("id", "database id is required")
	}

	resp, err := c.client.CreateDatabase(ctx, azcosmos.DatabaseProperties{ID: id}, nil)
	created := err == nil
	if err != nil && statusCode(err) != http.StatusConflict {
		return nil, storagemodels.ResourceResponse{}, mapError(err, c.endpoint, "database", id)
	}

	db, err := c.client.NewDatabase(id)
	if err != nil {
		return nil, storagemodels.ResourceResponse{}, fmt.Errorf("database %q: %w", id, err)
	}
	if !created {
		resp, err = db.Read(ctx, nil)
		if err != nil {
			return nil, storagemodels.ResourceResponse{}, mapError(err, c.endpoint, "database", id)
		}
	}

	return &Database{client: c, db: db, id: id}, resourceResponse(id, created, resp.Response), nil
}

// Close releases the handle. azcosmos clients hold no connection state of their own.
func (c *Client) Close() error {
	return nil
}

// Database wraps an azcosmos database client.
type Database struct {
	client *Client
	db     *azcosmos.DatabaseClient
	id     string
}

// ID returns the database id.
func (d *Database) ID() string {
	return d.id
}

// CreateContainerIfNotExists creates the container with a hash partition key on props.PartitionKeyPath.
// An existing container must be partitioned on the same path.
func (d *Database) CreateContainerIfNotExists(ctx context.Context, props storagemodels.ContainerProperties) (datastore.Container, storagemodels.ResourceResponse, error) {
	if props.ID == "" {
		return nil, storagemodels.ResourceResponse{}, storeerrors.NewValidationError("id", "container id is required")
	}
	if !strings.HasPrefix(props.PartitionKeyPath, "/") {
		return nil, storagemodels.ResourceResponse{}, storeerrors.NewValidationError("partitionKeyPath", "must be a path such as /LastName")
	}

	endpoint := d.client.endpoint
	resp, err := d.db.CreateContainer(ctx, azcosmos.ContainerProperties{
		ID: props.ID,
		PartitionKeyDefinition: azcosmos.PartitionKeyDefinition{
			Paths: []string{props.PartitionKeyPath},
		},
	}, nil)
	created := err == nil
	if err != nil && statusCode(err) != http.StatusConflict {
		return nil, storagemodels.ResourceResponse{}, mapError(err, endpoint, "container", props.ID)
	}

	cc, err := d.db.NewContainer(props.ID)
	if err != nil {
		return nil, storagemodels.ResourceResponse{}, fmt.Errorf("container %q: %w", props.ID, err)
	}
	if !created {
		resp, err = cc.Read(ctx, nil)
		if err != nil {
			return nil, storagemodels.ResourceResponse{}, mapError(err, endpoint, "container", props.ID)
		}
		if existing := partitionPath(resp.ContainerProperties); existing != props.PartitionKeyPath {
			return nil, storagemodels.ResourceResponse{}, storeerrors.NewValidationError("partitionKeyPath",
				fmt.Sprintf("container %q is partitioned by %s, not %s", props.ID, existing, props.PartitionKeyPath))
		}
	}

	container := newContainer(cc, endpoint, props.ID, props.PartitionKeyPath)
	return container, resourceResponse(props.ID, created, resp.Response), nil
}

// Delete removes the database and all of its containers.
func (d *Database) Delete(ctx context.Context) (storagemodels.ResourceResponse, error) {
	resp, err := d.db.Delete(ctx, nil)
	if err != nil {
		return storagemodels.ResourceResponse{}, mapError(err, d.client.endpoint, "database", d.id)
	}
	return resourceResponse(d.id, false, resp.Response), nil
}

// containerAPI is the part of *azcosmos.ContainerClient the item operations use.
type containerAPI interface {
	CreateItem(ctx context.Context, partitionKey azcosmos.PartitionKey, item []byte, o *azcosmos.ItemOptions) (azcosmos.ItemResponse, error)
	ReadItem(ctx context.Context, partitionKey azcosmos.PartitionKey, itemID string, o *azcosmos.ItemOptions) (azcosmos.ItemResponse, error)
	NewQueryItemsPager(query string, partitionKey azcosmos.PartitionKey, o *azcosmos.QueryOptions) *runtime.Pager[azcosmos.QueryItemsResponse]
}

// Container wraps an azcosmos container client.
type Container struct {
	api      containerAPI
	endpoint string
	id       string
	pkPath   string
}

func newContainer(api containerAPI, endpoint, id, pkPath string) *Container {
	return &Container{api: api, endpoint: endpoint, id: id, pkPath: pkPath}
}

// ID returns the container id.
func (ct *Container) ID() string {
	return ct.id
}

// PartitionKeyPath returns the path documents are partitioned by, e.g. "/LastName".
func (ct *Container) PartitionKeyPath() string {
	return ct.pkPath
}

// CreateItem inserts doc into the logical partition partitionKey. A duplicate id is a ConflictError.
func (ct *Container) CreateItem(ctx context.Context, partitionKey string, doc []byte) (storagemodels.ItemResponse, error) {
	var head struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(doc, &head); err != nil {
		return storagemodels.ItemResponse{}, storeerrors.NewValidationError("document", "must be a JSON object")
	}
	if head.ID == "" {
		return storagemodels.ItemResponse{}, storeerrors.NewValidationError("id", "document id is required")
	}
	if partitionKey == "" {
		return storagemodels.ItemResponse{}, storeerrors.NewValidationError(ct.pkPath, "partition key value is required")
	}

	resp, err := ct.api.CreateItem(ctx, azcosmos.NewPartitionKeyString(partitionKey), doc, nil)
	if err != nil {
		return storagemodels.ItemResponse{}, mapError(err, ct.endpoint, "item", head.ID)
	}
	return storagemodels.ItemResponse{
		ID:            head.ID,
		Value:         doc,
		RequestCharge: float64(resp.RequestCharge),
		ActivityID:    resp.ActivityID,
	}, nil
}

// ReadItem point-reads a document by partition key and id.
func (ct *Container) ReadItem(ctx context.Context, partitionKey, id string) (storagemodels.ItemResponse, error) {
	resp, err := ct.api.ReadItem(ctx, azcosmos.NewPartitionKeyString(partitionKey), id, nil)
	if err != nil {
		return storagemodels.ItemResponse{}, mapError(err, ct.endpoint, "item", id)
	}
	return storagemodels.ItemResponse{
		ID:            id,
		Value:         resp.Value,
		RequestCharge: float64(resp.RequestCharge),
		ActivityID:    resp.ActivityID,
	}, nil
}

func resourceResponse(id string, created bool, resp azcosmos.Response) storagemodels.ResourceResponse {
	return storagemodels.ResourceResponse{
		ID:            id,
		Created:       created,
		RequestCharge: float64(resp.RequestCharge),
		ActivityID:    resp.ActivityID,
	}
}

func partitionPath(props *azcosmos.ContainerProperties) string {
	if props == nil || len(props.PartitionKeyDefinition.Paths) == 0 {
		return ""
	}
	return props.PartitionKeyDefinition.Paths[0]
}

func statusCode(err error) int {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return 0
}

// mapError translates azcore response and transport errors into the semantic error taxonomy.
func mapError(err error, endpoint, resourceType, key string) error {
	switch statusCode(err) {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %v", storeerrors.NewNotFoundError(resourceType, key), err)
	case http.StatusConflict:
		return fmt.Errorf("%w: %v", storeerrors.NewConflictError(resourceType, key), err)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %v", storeerrors.NewValidationError(resourceType, "rejected by the service"), err)
	case http.StatusUnauthorized, http.StatusForbidden:
		return storeerrors.NewConnectionError(endpoint, err)
	case 0:
		var netErr net.Error
		var urlErr *url.Error
		if errors.As(err, &netErr) || errors.As(err, &urlErr) {
			return storeerrors.NewConnectionError(endpoint, err)
		}
	}
	return fmt.Errorf("%s %q: %w", resourceType, key, err)
}
