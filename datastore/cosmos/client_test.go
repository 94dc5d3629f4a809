/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package cosmos

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suparena/familystore/datastore"
	storeerrors "github.com/suparena/familystore/errors"
	"github.com/suparena/familystore/storagemodels"
)

// emulatorKey is the well-known Cosmos DB emulator key.
const emulatorKey = "C2y6yDjf5/R+ob0N8A7Cgv30VRDJIWEHLM+4QDU5DE2nQ9nDuVTqobD4b8mGGyPMbIZnqyMsEcaGQy67XIw/Jw=="

const accountBody = `{"id":"localhost","writableLocations":[{"name":"local","databaseAccountEndpoint":"https://localhost:8081/"}],` +
	`"readableLocations":[{"name":"local","databaseAccountEndpoint":"https://localhost:8081/"}],"enableMultipleWriteLocations":false}`

type cannedResponse struct {
	status int
	body   string
}

// fakeTransport answers azcosmos requests by "METHOD /path" and records every resource request.
type fakeTransport struct {
	mu       sync.Mutex
	routes   map[string]cannedResponse
	requests []string
}

func newFakeTransport(routes map[string]cannedResponse) *fakeTransport {
	return &fakeTransport{routes: routes}
}

func (f *fakeTransport) Do(req *http.Request) (*http.Response, error) {
	key := req.Method + " " + strings.TrimSuffix(req.URL.Path, "/")

	f.mu.Lock()
	canned, ok := f.routes[key]
	if key == "GET " {
		canned, ok = cannedResponse{status: http.StatusOK, body: accountBody}, true
	} else {
		f.requests = append(f.requests, key)
	}
	f.mu.Unlock()

	if !ok {
		canned = cannedResponse{status: http.StatusNotFound, body: `{"code":"NotFound","message":"no such resource"}`}
	}
	return &http.Response{
		Status:     strconv.Itoa(canned.status) + " " + http.StatusText(canned.status),
		StatusCode: canned.status,
		Header: http.Header{
			"Content-Type":        []string{"application/json"},
			"X-Ms-Request-Charge": []string{"1.25"},
			"X-Ms-Activity-Id":    []string{"activity-42"},
		},
		Body:          io.NopCloser(strings.NewReader(canned.body)),
		ContentLength: int64(len(canned.body)),
		Request:       req,
	}, nil
}

func (f *fakeTransport) setRoute(key string, canned cannedResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[key] = canned
}

func (f *fakeTransport) removeRoute(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.routes, key)
}

func (f *fakeTransport) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func fakeClient(t *testing.T, transport *fakeTransport) *Client {
	t.Helper()
	client, err := newClient(datastore.Options{Endpoint: testEndpoint, Key: emulatorKey}, &azcosmos.ClientOptions{
		ClientOptions: policy.ClientOptions{
			Transport: transport,
			Retry:     policy.RetryOptions{MaxRetries: -1},
		},
	})
	require.NoError(t, err)
	return client
}

const (
	conflictBody  = `{"code":"Conflict","message":"Resource with specified id or name already exists."}`
	databaseBody  = `{"id":"FamilyDatabase","_rid":"abc=","_self":"dbs/abc=/"}`
	containerBody = `{"id":"FamilyContainer","partitionKey":{"paths":["/LastName"],"kind":"Hash","version":2}}`
)

func TestCreateDatabaseIfNotExists(t *testing.T) {
	ctx := context.Background()

	t.Run("created", func(t *testing.T) {
		transport := newFakeTransport(map[string]cannedResponse{
			"POST /dbs": {http.StatusCreated, databaseBody},
		})
		db, resp, err := fakeClient(t, transport).CreateDatabaseIfNotExists(ctx, "FamilyDatabase")
		require.NoError(t, err)
		assert.Equal(t, "FamilyDatabase", db.ID())
		assert.True(t, resp.Created)
		assert.Equal(t, "FamilyDatabase", resp.ID)
		assert.InDelta(t, 1.25, resp.RequestCharge, 0.001)
		assert.Equal(t, "activity-42", resp.ActivityID)
		assert.Equal(t, []string{"POST /dbs"}, transport.Requests())
	})

	t.Run("existing", func(t *testing.T) {
		transport := newFakeTransport(map[string]cannedResponse{
			"POST /dbs":               {http.StatusConflict, conflictBody},
			"GET /dbs/FamilyDatabase": {http.StatusOK, databaseBody},
		})
		db, resp, err := fakeClient(t, transport).CreateDatabaseIfNotExists(ctx, "FamilyDatabase")
		require.NoError(t, err)
		assert.Equal(t, "FamilyDatabase", db.ID())
		assert.False(t, resp.Created)
		assert.Equal(t, "FamilyDatabase", resp.ID)
		assert.Equal(t, []string{"POST /dbs", "GET /dbs/FamilyDatabase"}, transport.Requests())
	})

	t.Run("unauthorized", func(t *testing.T) {
		transport := newFakeTransport(map[string]cannedResponse{
			"POST /dbs": {http.StatusUnauthorized, `{"code":"Unauthorized","message":"The input authorization token can't serve the request."}`},
		})
		_, _, err := fakeClient(t, transport).CreateDatabaseIfNotExists(ctx, "FamilyDatabase")
		assert.True(t, storeerrors.IsConnectionError(err), "unexpected error: %v", err)
	})
}

func TestCreateContainerIfNotExists(t *testing.T) {
	ctx := context.Background()
	props := storagemodels.ContainerProperties{ID: "FamilyContainer", PartitionKeyPath: "/LastName"}

	openDatabase := func(t *testing.T, transport *fakeTransport) datastore.Database {
		t.Helper()
		transport.setRoute("POST /dbs", cannedResponse{http.StatusCreated, databaseBody})
		db, _, err := fakeClient(t, transport).CreateDatabaseIfNotExists(ctx, "FamilyDatabase")
		require.NoError(t, err)
		return db
	}

	t.Run("created", func(t *testing.T) {
		transport := newFakeTransport(map[string]cannedResponse{
			"POST /dbs/FamilyDatabase/colls": {http.StatusCreated, containerBody},
		})
		c, resp, err := openDatabase(t, transport).CreateContainerIfNotExists(ctx, props)
		require.NoError(t, err)
		assert.True(t, resp.Created)
		assert.Equal(t, "FamilyContainer", c.ID())
		assert.Equal(t, "/LastName", c.PartitionKeyPath())
	})

	t.Run("existing", func(t *testing.T) {
		transport := newFakeTransport(map[string]cannedResponse{
			"POST /dbs/FamilyDatabase/colls":                {http.StatusConflict, conflictBody},
			"GET /dbs/FamilyDatabase/colls/FamilyContainer": {http.StatusOK, containerBody},
		})
		c, resp, err := openDatabase(t, transport).CreateContainerIfNotExists(ctx, props)
		require.NoError(t, err)
		assert.False(t, resp.Created)
		assert.Equal(t, "FamilyContainer", resp.ID)
		assert.Equal(t, "FamilyContainer", c.ID())
		assert.Contains(t, transport.Requests(), "GET /dbs/FamilyDatabase/colls/FamilyContainer")
	})

	t.Run("existing with another partition key", func(t *testing.T) {
		transport := newFakeTransport(map[string]cannedResponse{
			"POST /dbs/FamilyDatabase/colls": {http.StatusConflict, conflictBody},
			"GET /dbs/FamilyDatabase/colls/FamilyContainer": {http.StatusOK,
				`{"id":"FamilyContainer","partitionKey":{"paths":["/Surname"],"kind":"Hash","version":2}}`},
		})
		_, _, err := openDatabase(t, transport).CreateContainerIfNotExists(ctx, props)
		var ve *storeerrors.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "partitionKeyPath", ve.Field)
	})

	t.Run("forbidden", func(t *testing.T) {
		transport := newFakeTransport(map[string]cannedResponse{
			"POST /dbs/FamilyDatabase/colls": {http.StatusForbidden, `{"code":"Forbidden","message":"denied"}`},
		})
		_, _, err := openDatabase(t, transport).CreateContainerIfNotExists(ctx, props)
		assert.True(t, storeerrors.IsConnectionError(err), "unexpected error: %v", err)
	})
}

func TestDatabaseDelete(t *testing.T) {
	ctx := context.Background()

	transport := newFakeTransport(map[string]cannedResponse{
		"POST /dbs":                  {http.StatusCreated, databaseBody},
		"DELETE /dbs/FamilyDatabase": {http.StatusNoContent, ""},
	})
	db, _, err := fakeClient(t, transport).CreateDatabaseIfNotExists(ctx, "FamilyDatabase")
	require.NoError(t, err)

	resp, err := db.Delete(ctx)
	require.NoError(t, err)
	assert.Equal(t, "FamilyDatabase", resp.ID)

	transport.removeRoute("DELETE /dbs/FamilyDatabase")
	_, err = db.Delete(ctx)
	assert.True(t, storeerrors.IsNotFound(err), "unexpected error: %v", err)
}
