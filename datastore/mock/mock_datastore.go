/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package mock provides an in-memory implementation of the datastore client capability
// for tests and dry runs.
package mock

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/suparena/familystore/datastore"
	"github.com/suparena/familystore/datastore/query"
	"github.com/suparena/familystore/errors"
	"github.com/suparena/familystore/storagemodels"
)

// BackendName is the name the in-memory store registers under.
const BackendName = "memory"

const (
	provisionCharge = 1.0
	readCharge      = 1.0
	// writeChargePerKiB is charged for every started KiB of a written document.
	writeChargePerKiB = 1.0
)

// Operation names a client capability call for failure injection.
type Operation string

const (
	OpCreateDatabase  Operation = "CreateDatabase"
	OpCreateContainer Operation = "CreateContainer"
	OpCreateItem      Operation = "CreateItem"
	OpReadItem        Operation = "ReadItem"
	OpQuery           Operation = "Query"
	OpDeleteDatabase  Operation = "DeleteDatabase"
	OpClose           Operation = "Close"
)

var errClosed = stderrors.New("client is closed")

func init() {
	if err := datastore.RegisterBackend(BackendName, Open); err != nil {
		panic(err)
	}
}

type itemKey struct {
	partition string
	id        string
}

type containerState struct {
	id     string
	pkPath string
	items  map[itemKey][]byte
	order  []itemKey
}

type databaseState struct {
	id         string
	containers map[string]*containerState
}

// Client is an in-memory document store account.
type Client struct {
	mu         sync.RWMutex
	databases  map[string]*databaseState
	errs       map[Operation]error
	closeCount int
}

// NewClient creates an empty in-memory store.
func NewClient() *Client {
	return &Client{
		databases: make(map[string]*databaseState),
		errs:      make(map[Operation]error),
	}
}

// Open satisfies datastore.Opener; connection options are ignored.
func Open(_ context.Context, _ datastore.Options) (datastore.Client, error) {
	return NewClient(), nil
}

// WithError makes every call of op fail with err
func (c *Client) WithError(op Operation, err error) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs[op] = err
	return c
}

func (c *Client) check(op Operation) error {
	if err := c.errs[op]; err != nil {
		return err
	}
	if c.closeCount > 0 && op != OpClose {
		return errors.NewConnectionError(BackendName, errClosed)
	}
	return nil
}

// CreateDatabaseIfNotExists returns the named database, creating it when absent.
func (c *Client) CreateDatabaseIfNotExists(ctx context.Context, id string) (datastore.Database, storagemodels.ResourceResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, storagemodels.ResourceResponse{}, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, storagemodels.ResourceResponse{}, errors.NewValidationError("id", "database id is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(OpCreateDatabase); err != nil {
		return nil, storagemodels.ResourceResponse{}, err
	}

	_, exists := c.databases[id]
	if !exists {
		c.databases[id] = &databaseState{id: id, containers: make(map[string]*containerState)}
	}
	return &Database{client: c, id: id}, response(id, !exists), nil
}

// Close releases the client. Calls made after Close fail with a ConnectionError.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCount++
	return c.check(OpClose)
}

// Helper methods for testing

// CloseCount returns how many times Close has been called
func (c *Client) CloseCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closeCount
}

// DatabaseIDs returns the ids of existing databases
func (c *Client) DatabaseIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.databases))
	for id := range c.databases {
		ids = append(ids, id)
	}
	return ids
}

// ItemCount returns the number of documents in a container, or -1 when it does not exist
func (c *Client) ItemCount(databaseID, containerID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	db, ok := c.databases[databaseID]
	if !ok {
		return -1
	}
	cs, ok := db.containers[containerID]
	if !ok {
		return -1
	}
	return len(cs.items)
}

// Database is a handle to an in-memory database.
type Database struct {
	client *Client
	id     string
}

// ID returns the database id.
func (d *Database) ID() string {
	return d.id
}

// CreateContainerIfNotExists returns the named container, creating it when absent. An existing
// container keeps its original partition key path.
func (d *Database) CreateContainerIfNotExists(ctx context.Context, props storagemodels.ContainerProperties) (datastore.Container, storagemodels.ResourceResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, storagemodels.ResourceResponse{}, err
	}
	if strings.TrimSpace(props.ID) == "" {
		return nil, storagemodels.ResourceResponse{}, errors.NewValidationError("id", "container id is required")
	}
	if !strings.HasPrefix(props.PartitionKeyPath, "/") || len(props.PartitionKeyPath) < 2 {
		return nil, storagemodels.ResourceResponse{}, errors.NewValidationError("partitionKeyPath", "must be a path such as /LastName")
	}

	c := d.client
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(OpCreateContainer); err != nil {
		return nil, storagemodels.ResourceResponse{}, err
	}

	db, ok := c.databases[d.id]
	if !ok {
		return nil, storagemodels.ResourceResponse{}, errors.NewNotFoundError("database", d.id)
	}
	cs, exists := db.containers[props.ID]
	if !exists {
		cs = &containerState{id: props.ID, pkPath: props.PartitionKeyPath, items: make(map[itemKey][]byte)}
		db.containers[props.ID] = cs
	}
	return &Container{client: c, databaseID: d.id, id: cs.id, pkPath: cs.pkPath}, response(props.ID, !exists), nil
}

// Delete removes the database and everything in it.
func (d *Database) Delete(ctx context.Context) (storagemodels.ResourceResponse, error) {
	if err := ctx.Err(); err != nil {
		return storagemodels.ResourceResponse{}, err
	}

	c := d.client
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(OpDeleteDatabase); err != nil {
		return storagemodels.ResourceResponse{}, err
	}

	if _, ok := c.databases[d.id]; !ok {
		return storagemodels.ResourceResponse{}, errors.NewNotFoundError("database", d.id)
	}
	delete(c.databases, d.id)
	return response(d.id, false), nil
}

// Container is a handle to an in-memory container.
type Container struct {
	client     *Client
	databaseID string
	id         string
	pkPath     string
}

// ID returns the container id.
func (ct *Container) ID() string {
	return ct.id
}

// PartitionKeyPath returns the path documents are partitioned by, e.g. "/LastName".
func (ct *Container) PartitionKeyPath() string {
	return ct.pkPath
}

// state must be called with the client lock held.
func (ct *Container) state() (*containerState, error) {
	db, ok := ct.client.databases[ct.databaseID]
	if !ok {
		return nil, errors.NewNotFoundError("database", ct.databaseID)
	}
	cs, ok := db.containers[ct.id]
	if !ok {
		return nil, errors.NewNotFoundError("container", ct.id)
	}
	return cs, nil
}

// CreateItem stores a copy of doc. The document must carry a non-empty "id" and its partition
// key field must equal partitionKey.
func (ct *Container) CreateItem(ctx context.Context, partitionKey string, doc []byte) (storagemodels.ItemResponse, error) {
	if err := ctx.Err(); err != nil {
		return storagemodels.ItemResponse{}, err
	}
	id, err := documentKey(doc, ct.pkPath, partitionKey)
	if err != nil {
		return storagemodels.ItemResponse{}, err
	}

	c := ct.client
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(OpCreateItem); err != nil {
		return storagemodels.ItemResponse{}, err
	}
	cs, err := ct.state()
	if err != nil {
		return storagemodels.ItemResponse{}, err
	}

	key := itemKey{partition: partitionKey, id: id}
	if _, exists := cs.items[key]; exists {
		return storagemodels.ItemResponse{}, errors.NewConflictError("item", id)
	}
	stored := append([]byte(nil), doc...)
	cs.items[key] = stored
	cs.order = append(cs.order, key)

	return storagemodels.ItemResponse{
		ID:            id,
		Value:         append([]byte(nil), stored...),
		RequestCharge: writeCharge(len(stored)),
		ActivityID:    uuid.NewString(),
	}, nil
}

// ReadItem returns a copy of the stored document.
func (ct *Container) ReadItem(ctx context.Context, partitionKey, id string) (storagemodels.ItemResponse, error) {
	if err := ctx.Err(); err != nil {
		return storagemodels.ItemResponse{}, err
	}

	c := ct.client
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.check(OpReadItem); err != nil {
		return storagemodels.ItemResponse{}, err
	}
	cs, err := ct.state()
	if err != nil {
		return storagemodels.ItemResponse{}, err
	}

	doc, ok := cs.items[itemKey{partition: partitionKey, id: id}]
	if !ok {
		return storagemodels.ItemResponse{}, errors.NewNotFoundError("item", id)
	}
	return storagemodels.ItemResponse{
		ID:            id,
		Value:         append([]byte(nil), doc...),
		RequestCharge: readCharge,
		ActivityID:    uuid.NewString(),
	}, nil
}

// NewQueryPager starts a query. Matching documents are collected on the first NextPage call
// and returned in insertion order.
func (ct *Container) NewQueryPager(spec storagemodels.QuerySpec, opts ...storagemodels.QueryOption) datastore.Pager {
	options := storagemodels.ApplyQueryOptions(opts...)
	return &pager{
		container: ct,
		spec:      spec,
		params:    datastore.MergeParameters(spec, options),
		pageSize:  int(options.PageSize),
	}
}

func (ct *Container) snapshot(matcher *query.Matcher, partition any, scoped bool) ([][]byte, error) {
	c := ct.client
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.check(OpQuery); err != nil {
		return nil, err
	}
	cs, err := ct.state()
	if err != nil {
		return nil, err
	}

	var results [][]byte
	for _, key := range cs.order {
		if scoped && key.partition != fmt.Sprint(partition) {
			continue
		}
		doc := cs.items[key]
		ok, err := matcher.Match(doc)
		if err != nil {
			return nil, err
		}
		if ok {
			results = append(results, append([]byte(nil), doc...))
		}
	}
	return results, nil
}

type pager struct {
	container *Container
	spec      storagemodels.QuerySpec
	params    []storagemodels.QueryParameter
	pageSize  int

	started bool
	done    bool
	results [][]byte
	offset  int
	page    int
}

func (p *pager) More() bool {
	return !p.done
}

func (p *pager) NextPage(ctx context.Context) (storagemodels.QueryPage, error) {
	if p.done {
		return storagemodels.QueryPage{}, fmt.Errorf("query %q has no more pages", p.spec.Text)
	}
	if err := ctx.Err(); err != nil {
		return storagemodels.QueryPage{}, err
	}

	if !p.started {
		p.started = true
		results, err := p.run()
		if err != nil {
			p.done = true
			return storagemodels.QueryPage{}, err
		}
		p.results = results
	}

	end := p.offset + p.pageSize
	if end > len(p.results) {
		end = len(p.results)
	}
	items := p.results[p.offset:end]
	p.offset = end
	p.page++
	if p.offset >= len(p.results) {
		p.done = true
	}

	return storagemodels.QueryPage{
		Items:         items,
		RequestCharge: readCharge,
		ActivityID:    uuid.NewString(),
		PageNumber:    p.page,
	}, nil
}

func (p *pager) run() ([][]byte, error) {
	stmt, err := query.Parse(p.spec.Text)
	if err != nil {
		return nil, err
	}
	stmt, err = stmt.Bind(p.params)
	if err != nil {
		return nil, err
	}
	matcher, err := query.NewMatcher(stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to compile query %q: %w", p.spec.Text, err)
	}
	partition, scoped := stmt.PartitionValue(p.container.pkPath)
	return p.container.snapshot(matcher, partition, scoped)
}

// documentKey extracts the id of doc and checks its partition key field against partitionKey.
func documentKey(doc []byte, pkPath, partitionKey string) (string, error) {
	var fields map[string]any
	if err := json.Unmarshal(doc, &fields); err != nil {
		return "", errors.NewValidationError("document", "must be a JSON object")
	}
	id, _ := fields["id"].(string)
	if id == "" {
		return "", errors.NewValidationError("id", "document id is required")
	}
	if partitionKey == "" {
		return "", errors.NewValidationError(pkPath, "partition key value is required")
	}

	var cur any = fields
	for _, part := range strings.Split(strings.TrimPrefix(pkPath, "/"), "/") {
		m, ok := cur.(map[string]any)
		if !ok {
			cur = nil
			break
		}
		cur = m[part]
	}
	if fmt.Sprint(cur) != partitionKey {
		return "", errors.NewValidationError(pkPath, fmt.Sprintf("document partition key %v does not match %q", cur, partitionKey))
	}
	return id, nil
}

func writeCharge(size int) float64 {
	kib := (size + 1023) / 1024
	if kib == 0 {
		kib = 1
	}
	return float64(kib) * writeChargePerKiB
}

func response(id string, created bool) storagemodels.ResourceResponse {
	return storagemodels.ResourceResponse{
		ID:            id,
		Created:       created,
		RequestCharge: provisionCharge,
		ActivityID:    uuid.NewString(),
	}
}
