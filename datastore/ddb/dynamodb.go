/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/goccy/go-json"
	"github.com/suparena/familystore/datastore"
	storeerrors "github.com/suparena/familystore/errors"
	"github.com/suparena/familystore/storagemodels"
)

// BackendName is the name the DynamoDB backend registers under.
const BackendName = "dynamodb"

// idAttribute is the document id; it is the table's sort key unless it is also the partition key.
const idAttribute = "id"

const defaultTableWait = 2 * time.Minute

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.\-]{3,255}$`)

func init() {
	if err := datastore.RegisterBackend(BackendName, Open); err != nil {
		panic(err)
	}
}

// API is the subset of the DynamoDB client used by this backend.
type API interface {
	CreateTable(ctx context.Context, params *sdk.CreateTableInput, optFns ...func(*sdk.Options)) (*sdk.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *sdk.DescribeTableInput, optFns ...func(*sdk.Options)) (*sdk.DescribeTableOutput, error)
	DeleteTable(ctx context.Context, params *sdk.DeleteTableInput, optFns ...func(*sdk.Options)) (*sdk.DeleteTableOutput, error)
	ListTables(ctx context.Context, params *sdk.ListTablesInput, optFns ...func(*sdk.Options)) (*sdk.ListTablesOutput, error)
	PutItem(ctx context.Context, params *sdk.PutItemInput, optFns ...func(*sdk.Options)) (*sdk.PutItemOutput, error)
	GetItem(ctx context.Context, params *sdk.GetItemInput, optFns ...func(*sdk.Options)) (*sdk.GetItemOutput, error)
	Query(ctx context.Context, params *sdk.QueryInput, optFns ...func(*sdk.Options)) (*sdk.QueryOutput, error)
	Scan(ctx context.Context, params *sdk.ScanInput, optFns ...func(*sdk.Options)) (*sdk.ScanOutput, error)
}

// Client maps the document store model onto DynamoDB: a database is a table-name namespace
// "<database>." and a container is the table "<database>.<container>".
type Client struct {
	api       API
	endpoint  string
	tableWait time.Duration
}

// NewDynamoDBClient initializes a DynamoDB SDK client using static AWS credentials.
// A non-empty endpoint overrides the regional endpoint, e.g. for DynamoDB Local.
func NewDynamoDBClient(ctx context.Context, opts datastore.Options) (*sdk.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.Key, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return sdk.NewFromConfig(cfg, func(o *sdk.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	}), nil
}

// NewClient builds a Client from connection options without contacting the service.
func NewClient(ctx context.Context, opts datastore.Options) (*Client, error) {
	if opts.Region == "" {
		return nil, storeerrors.NewValidationError("region", "AWS region is required")
	}
	api, err := NewDynamoDBClient(ctx, opts)
	if err != nil {
		return nil, storeerrors.NewConnectionError(opts.Endpoint, err)
	}
	return NewClientWithAPI(api, opts.Endpoint), nil
}

// NewClientWithAPI wraps an existing API implementation.
func NewClientWithAPI(api API, endpoint string) *Client {
	return &Client{api: api, endpoint: endpoint, tableWait: defaultTableWait}
}

// WithTableWait bounds how long container creation waits for a new table to become active.
func (c *Client) WithTableWait(d time.Duration) *Client {
	c.tableWait = d
	return c
}

// Open builds a Client and verifies the endpoint and credentials with a one-table listing.
func Open(ctx context.Context, opts datastore.Options) (datastore.Client, error) {
	c, err := NewClient(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := c.Ping(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Ping issues a minimal ListTables call.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.ListTables(ctx, &sdk.ListTablesInput{Limit: aws.Int32(1)})
	if err != nil {
		return c.mapError(err, "account", c.endpoint)
	}
	return nil
}

// CreateDatabaseIfNotExists returns a handle to the namespace. DynamoDB has no database
// resource, so Created reports whether the namespace held no tables yet.
func (c *Client) CreateDatabaseIfNotExists(ctx context.Context, id string) (datastore.Database, storagemodels.ResourceResponse, error) {
	if id == "" || strings.Contains(id, ".") || !tableNamePattern.MatchString(id) {
		return nil, storagemodels.ResourceResponse{}, storeerrors.NewValidationError("id", "database id must be 3-255 characters of [a-zA-Z0-9_-]")
	}

	tables, err := c.listTables(ctx, id+".")
	if err != nil {
		return nil, storagemodels.ResourceResponse{}, err
	}
	return &Database{client: c, id: id}, storagemodels.ResourceResponse{ID: id, Created: len(tables) == 0}, nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (c *Client) Close() error {
	return nil
}

// listTables returns every table whose name starts with prefix.
func (c *Client) listTables(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	paginator := sdk.NewListTablesPaginator(c.api, &sdk.ListTablesInput{
		ExclusiveStartTableName: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, c.mapError(err, "database", strings.TrimSuffix(prefix, "."))
		}
		for _, name := range out.TableNames {
			// ListTables is sorted, so the first name past the prefix ends the namespace.
			if !strings.HasPrefix(name, prefix) {
				return names, nil
			}
			names = append(names, name)
		}
	}
	return names, nil
}

// mapError translates SDK errors into the semantic error taxonomy.
func (c *Client) mapError(err error, resourceType, key string) error {
	var cfe *types.ConditionalCheckFailedException
	if errors.As(err, &cfe) {
		return fmt.Errorf("%w: %v", storeerrors.NewConflictError(resourceType, key), err)
	}
	var rnf *types.ResourceNotFoundException
	if errors.As(err, &rnf) {
		return fmt.Errorf("%w: %v", storeerrors.NewNotFoundError(resourceType, key), err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "UnrecognizedClientException", "InvalidSignatureException", "AccessDeniedException",
			"MissingAuthenticationTokenException", "ExpiredTokenException":
			return storeerrors.NewConnectionError(c.endpoint, err)
		case "ValidationException":
			return fmt.Errorf("%w: %v", storeerrors.NewValidationError(resourceType, apiErr.ErrorMessage()), err)
		}
	}
	var sendErr *smithyhttp.RequestSendError
	if errors.As(err, &sendErr) {
		return storeerrors.NewConnectionError(c.endpoint, err)
	}
	return fmt.Errorf("%s %q: %w", resourceType, key, err)
}

// Database is a table-name namespace.
type Database struct {
	client *Client
	id     string
}

// ID returns the database id.
func (d *Database) ID() string {
	return d.id
}

// CreateContainerIfNotExists creates the container table keyed by the partition attribute and id.
// An existing table is accepted when its hash key matches the requested partition key path.
func (d *Database) CreateContainerIfNotExists(ctx context.Context, props storagemodels.ContainerProperties) (datastore.Container, storagemodels.ResourceResponse, error) {
	pkAttr, err := partitionAttribute(props.PartitionKeyPath)
	if err != nil {
		return nil, storagemodels.ResourceResponse{}, err
	}
	table := d.id + "." + props.ID
	if props.ID == "" || !tableNamePattern.MatchString(table) {
		return nil, storagemodels.ResourceResponse{}, storeerrors.NewValidationError("id", fmt.Sprintf("table name %q is not a valid DynamoDB table name", table))
	}

	c := d.client
	container := &Container{client: c, databaseID: d.id, id: props.ID, table: table, pkPath: props.PartitionKeyPath, pkAttr: pkAttr}

	_, err = c.api.CreateTable(ctx, createTableInput(table, pkAttr))
	if err == nil {
		waiter := sdk.NewTableExistsWaiter(c.api)
		if err := waiter.Wait(ctx, &sdk.DescribeTableInput{TableName: aws.String(table)}, c.tableWait); err != nil {
			return nil, storagemodels.ResourceResponse{}, fmt.Errorf("waiting for table %q: %w", table, err)
		}
		return container, storagemodels.ResourceResponse{ID: props.ID, Created: true}, nil
	}

	var inUse *types.ResourceInUseException
	if !errors.As(err, &inUse) {
		return nil, storagemodels.ResourceResponse{}, c.mapError(err, "container", props.ID)
	}

	out, err := c.api.DescribeTable(ctx, &sdk.DescribeTableInput{TableName: aws.String(table)})
	if err != nil {
		return nil, storagemodels.ResourceResponse{}, c.mapError(err, "container", props.ID)
	}
	if existing := hashKey(out.Table); existing != pkAttr {
		return nil, storagemodels.ResourceResponse{}, storeerrors.NewValidationError("partitionKeyPath",
			fmt.Sprintf("container %q is partitioned by /%s, not %s", props.ID, existing, props.PartitionKeyPath))
	}
	return container, storagemodels.ResourceResponse{ID: props.ID, Created: false}, nil
}

// Delete drops every table in the namespace.
func (d *Database) Delete(ctx context.Context) (storagemodels.ResourceResponse, error) {
	c := d.client
	tables, err := c.listTables(ctx, d.id+".")
	if err != nil {
		return storagemodels.ResourceResponse{}, err
	}
	if len(tables) == 0 {
		return storagemodels.ResourceResponse{}, storeerrors.NewNotFoundError("database", d.id)
	}

	for _, table := range tables {
		_, err := c.api.DeleteTable(ctx, &sdk.DeleteTableInput{TableName: aws.String(table)})
		if err != nil {
			var rnf *types.ResourceNotFoundException
			if errors.As(err, &rnf) {
				continue
			}
			return storagemodels.ResourceResponse{}, c.mapError(err, "container", table)
		}
	}
	return storagemodels.ResourceResponse{ID: d.id}, nil
}

// Container is one DynamoDB table.
type Container struct {
	client     *Client
	databaseID string
	id         string
	table      string
	pkPath     string
	pkAttr     string
}

// ID returns the container id.
func (ct *Container) ID() string {
	return ct.id
}

// PartitionKeyPath returns the path documents are partitioned by, e.g. "/LastName".
func (ct *Container) PartitionKeyPath() string {
	return ct.pkPath
}

// CreateItem puts doc unless an item with the same key exists.
func (ct *Container) CreateItem(ctx context.Context, partitionKey string, doc []byte) (storagemodels.ItemResponse, error) {
	var fields map[string]any
	if err := json.Unmarshal(doc, &fields); err != nil {
		return storagemodels.ItemResponse{}, storeerrors.NewValidationError("document", "must be a JSON object")
	}
	id, _ := fields[idAttribute].(string)
	if id == "" {
		return storagemodels.ItemResponse{}, storeerrors.NewValidationError(idAttribute, "document id is required")
	}
	if pk, _ := fields[ct.pkAttr].(string); pk == "" || pk != partitionKey {
		return storagemodels.ItemResponse{}, storeerrors.NewValidationError(ct.pkPath,
			fmt.Sprintf("document partition key %v does not match %q", fields[ct.pkAttr], partitionKey))
	}

	av, err := attributevalue.MarshalMap(fields)
	if err != nil {
		return storagemodels.ItemResponse{}, fmt.Errorf("failed to marshal document: %w", err)
	}

	out, err := ct.client.api.PutItem(ctx, &sdk.PutItemInput{
		TableName:                aws.String(ct.table),
		Item:                     av,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": idAttribute},
		ReturnConsumedCapacity:   types.ReturnConsumedCapacityTotal,
	})
	if err != nil {
		return storagemodels.ItemResponse{}, ct.client.mapError(err, "item", id)
	}

	return storagemodels.ItemResponse{
		ID:            id,
		Value:         doc,
		RequestCharge: capacityUnits(out.ConsumedCapacity),
	}, nil
}

// ReadItem performs a consistent GetItem.
func (ct *Container) ReadItem(ctx context.Context, partitionKey, id string) (storagemodels.ItemResponse, error) {
	out, err := ct.client.api.GetItem(ctx, &sdk.GetItemInput{
		TableName:              aws.String(ct.table),
		Key:                    ct.key(partitionKey, id),
		ConsistentRead:         aws.Bool(true),
		ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
	})
	if err != nil {
		return storagemodels.ItemResponse{}, ct.client.mapError(err, "item", id)
	}
	if out.Item == nil {
		return storagemodels.ItemResponse{}, storeerrors.NewNotFoundError("item", id)
	}

	doc, err := itemToJSON(out.Item)
	if err != nil {
		return storagemodels.ItemResponse{}, err
	}
	return storagemodels.ItemResponse{
		ID:            id,
		Value:         doc,
		RequestCharge: capacityUnits(out.ConsumedCapacity),
	}, nil
}

func (ct *Container) key(partitionKey, id string) map[string]types.AttributeValue {
	key := map[string]types.AttributeValue{
		ct.pkAttr: &types.AttributeValueMemberS{Value: partitionKey},
	}
	if ct.pkAttr != idAttribute {
		key[idAttribute] = &types.AttributeValueMemberS{Value: id}
	}
	return key
}

func createTableInput(table, pkAttr string) *sdk.CreateTableInput {
	input := &sdk.CreateTableInput{
		TableName: aws.String(table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(pkAttr), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(pkAttr), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	}
	if pkAttr != idAttribute {
		input.AttributeDefinitions = append(input.AttributeDefinitions,
			types.AttributeDefinition{AttributeName: aws.String(idAttribute), AttributeType: types.ScalarAttributeTypeS})
		input.KeySchema = append(input.KeySchema,
			types.KeySchemaElement{AttributeName: aws.String(idAttribute), KeyType: types.KeyTypeRange})
	}
	return input
}

// partitionAttribute turns "/LastName" into "LastName". Nested paths cannot be table keys.
func partitionAttribute(path string) (string, error) {
	if !strings.HasPrefix(path, "/") || len(path) < 2 {
		return "", storeerrors.NewValidationError("partitionKeyPath", "must be a path such as /LastName")
	}
	attr := path[1:]
	if strings.Contains(attr, "/") {
		return "", storeerrors.NewUnsupportedError(BackendName, "nested partition key paths")
	}
	return attr, nil
}

func hashKey(desc *types.TableDescription) string {
	if desc == nil {
		return ""
	}
	for _, k := range desc.KeySchema {
		if k.KeyType == types.KeyTypeHash {
			return aws.ToString(k.AttributeName)
		}
	}
	return ""
}

func capacityUnits(cc *types.ConsumedCapacity) float64 {
	if cc == nil {
		return 0
	}
	return aws.ToFloat64(cc.CapacityUnits)
}

func itemToJSON(item map[string]types.AttributeValue) ([]byte, error) {
	var fields map[string]any
	if err := attributevalue.UnmarshalMap(item, &fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	doc, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode item as JSON: %w", err)
	}
	return doc, nil
}
