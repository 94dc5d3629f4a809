/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/suparena/familystore/datastore/query"
	storeerrors "github.com/suparena/familystore/errors"
	"github.com/suparena/familystore/storagemodels"
)

// --- Mock for the DynamoDB API ---

type MockAPI struct{ mock.Mock }

func (m *MockAPI) CreateTable(ctx context.Context, params *sdk.CreateTableInput, _ ...func(*sdk.Options)) (*sdk.CreateTableOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sdk.CreateTableOutput)
	return out, args.Error(1)
}
func (m *MockAPI) DescribeTable(ctx context.Context, params *sdk.DescribeTableInput, _ ...func(*sdk.Options)) (*sdk.DescribeTableOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sdk.DescribeTableOutput)
	return out, args.Error(1)
}
func (m *MockAPI) DeleteTable(ctx context.Context, params *sdk.DeleteTableInput, _ ...func(*sdk.Options)) (*sdk.DeleteTableOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sdk.DeleteTableOutput)
	return out, args.Error(1)
}
func (m *MockAPI) ListTables(ctx context.Context, params *sdk.ListTablesInput, _ ...func(*sdk.Options)) (*sdk.ListTablesOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sdk.ListTablesOutput)
	return out, args.Error(1)
}
func (m *MockAPI) PutItem(ctx context.Context, params *sdk.PutItemInput, _ ...func(*sdk.Options)) (*sdk.PutItemOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sdk.PutItemOutput)
	return out, args.Error(1)
}
func (m *MockAPI) GetItem(ctx context.Context, params *sdk.GetItemInput, _ ...func(*sdk.Options)) (*sdk.GetItemOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sdk.GetItemOutput)
	return out, args.Error(1)
}
func (m *MockAPI) Query(ctx context.Context, params *sdk.QueryInput, _ ...func(*sdk.Options)) (*sdk.QueryOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sdk.QueryOutput)
	return out, args.Error(1)
}
func (m *MockAPI) Scan(ctx context.Context, params *sdk.ScanInput, _ ...func(*sdk.Options)) (*sdk.ScanOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sdk.ScanOutput)
	return out, args.Error(1)
}

func testContainer(api API) *Container {
	return &Container{
		client:     NewClientWithAPI(api, "http://localhost:8000"),
		databaseID: "FamilyDatabase",
		id:         "FamilyContainer",
		table:      "FamilyDatabase.FamilyContainer",
		pkPath:     "/LastName",
		pkAttr:     "LastName",
	}
}

// --- Tests ---

func TestCreateDatabaseIfNotExists(t *testing.T) {
	ctx := context.Background()
	api := new(MockAPI)
	api.On("ListTables", ctx, mock.MatchedBy(func(in *sdk.ListTablesInput) bool {
		return aws.ToString(in.ExclusiveStartTableName) == "FamilyDatabase."
	})).Return(&sdk.ListTablesOutput{
		TableNames: []string{"FamilyDatabase.FamilyContainer", "Other.Table"},
	}, nil)

	client := NewClientWithAPI(api, "")
	db, resp, err := client.CreateDatabaseIfNotExists(ctx, "FamilyDatabase")
	require.NoError(t, err)
	assert.Equal(t, "FamilyDatabase", db.ID())
	assert.False(t, resp.Created, "namespace already holds a table")

	_, _, err = client.CreateDatabaseIfNotExists(ctx, "bad.name")
	assert.True(t, storeerrors.IsValidationError(err))
}

func TestCreateContainer_NewTable(t *testing.T) {
	ctx := context.Background()
	api := new(MockAPI)
	api.On("CreateTable", ctx, mock.MatchedBy(func(in *sdk.CreateTableInput) bool {
		return aws.ToString(in.TableName) == "FamilyDatabase.FamilyContainer" &&
			len(in.KeySchema) == 2 &&
			aws.ToString(in.KeySchema[0].AttributeName) == "LastName" &&
			in.KeySchema[0].KeyType == types.KeyTypeHash &&
			aws.ToString(in.KeySchema[1].AttributeName) == "id"
	})).Return(&sdk.CreateTableOutput{}, nil).Once()
	api.On("DescribeTable", mock.Anything, mock.Anything).Return(&sdk.DescribeTableOutput{
		Table: &types.TableDescription{TableStatus: types.TableStatusActive},
	}, nil)

	db := &Database{client: NewClientWithAPI(api, "").WithTableWait(time.Minute), id: "FamilyDatabase"}
	c, resp, err := db.CreateContainerIfNotExists(ctx, storagemodels.ContainerProperties{ID: "FamilyContainer", PartitionKeyPath: "/LastName"})
	require.NoError(t, err)
	assert.True(t, resp.Created)
	assert.Equal(t, "FamilyContainer", c.ID())
	assert.Equal(t, "/LastName", c.PartitionKeyPath())
	api.AssertExpectations(t)
}

func TestCreateContainer_Existing(t *testing.T) {
	ctx := context.Background()
	api := new(MockAPI)
	api.On("CreateTable", ctx, mock.Anything).Return(nil, &types.ResourceInUseException{Message: aws.String("table exists")})
	api.On("DescribeTable", ctx, mock.Anything).Return(&sdk.DescribeTableOutput{
		Table: &types.TableDescription{
			TableStatus: types.TableStatusActive,
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("LastName"), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String("id"), KeyType: types.KeyTypeRange},
			},
		},
	}, nil)

	db := &Database{client: NewClientWithAPI(api, ""), id: "FamilyDatabase"}
	_, resp, err := db.CreateContainerIfNotExists(ctx, storagemodels.ContainerProperties{ID: "FamilyContainer", PartitionKeyPath: "/LastName"})
	require.NoError(t, err)
	assert.False(t, resp.Created)

	_, _, err = db.CreateContainerIfNotExists(ctx, storagemodels.ContainerProperties{ID: "FamilyContainer", PartitionKeyPath: "/Surname"})
	assert.True(t, storeerrors.IsValidationError(err), "a different partition key must be rejected")
}

func TestCreateContainer_NestedPartitionKey(t *testing.T) {
	db := &Database{client: NewClientWithAPI(new(MockAPI), ""), id: "FamilyDatabase"}
	_, _, err := db.CreateContainerIfNotExists(context.Background(), storagemodels.ContainerProperties{ID: "c1", PartitionKeyPath: "/Address/State"})
	assert.True(t, storeerrors.IsUnsupported(err))
}

func TestCreateItem(t *testing.T) {
	ctx := context.Background()
	doc := []byte(`{"id":"Andersen.1","LastName":"Andersen","Children":[{"FirstName":"Henry","Grade":5}]}`)

	t.Run("created", func(t *testing.T) {
		api := new(MockAPI)
		api.On("PutItem", ctx, mock.MatchedBy(func(in *sdk.PutItemInput) bool {
			_, hasID := in.Item["id"]
			return aws.ToString(in.ConditionExpression) == "attribute_not_exists(#id)" &&
				in.ExpressionAttributeNames["#id"] == "id" && hasID
		})).Return(&sdk.PutItemOutput{
			ConsumedCapacity: &types.ConsumedCapacity{CapacityUnits: aws.Float64(1)},
		}, nil)

		resp, err := testContainer(api).CreateItem(ctx, "Andersen", doc)
		require.NoError(t, err)
		assert.Equal(t, "Andersen.1", resp.ID)
		assert.Equal(t, 1.0, resp.RequestCharge)
	})

	t.Run("conflict", func(t *testing.T) {
		api := new(MockAPI)
		api.On("PutItem", ctx, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")})

		_, err := testContainer(api).CreateItem(ctx, "Andersen", doc)
		assert.True(t, storeerrors.IsConflict(err))
	})

	t.Run("partition mismatch", func(t *testing.T) {
		api := new(MockAPI)
		_, err := testContainer(api).CreateItem(ctx, "Wakefield", doc)
		assert.True(t, storeerrors.IsValidationError(err))
		api.AssertNotCalled(t, "PutItem", mock.Anything, mock.Anything)
	})
}

func TestReadItem_NotFound(t *testing.T) {
	ctx := context.Background()
	api := new(MockAPI)
	api.On("GetItem", ctx, mock.Anything).Return(&sdk.GetItemOutput{}, nil)

	_, err := testContainer(api).ReadItem(ctx, "Andersen", "Andersen.9")
	assert.True(t, storeerrors.IsNotFound(err))
}

func TestQueryPager_UsesKeyCondition(t *testing.T) {
	ctx := context.Background()
	api := new(MockAPI)
	api.On("Query", ctx, mock.MatchedBy(func(in *sdk.QueryInput) bool {
		return aws.ToString(in.KeyConditionExpression) == "#n0 = :v0" && in.FilterExpression == nil &&
			in.ExpressionAttributeNames["#n0"] == "LastName"
	})).Return(&sdk.QueryOutput{
		Items: []map[string]types.AttributeValue{
			{
				"id":       &types.AttributeValueMemberS{Value: "Andersen.1"},
				"LastName": &types.AttributeValueMemberS{Value: "Andersen"},
			},
		},
		ConsumedCapacity: &types.ConsumedCapacity{CapacityUnits: aws.Float64(0.5)},
	}, nil).Once()

	pager := testContainer(api).NewQueryPager(storagemodels.QuerySpec{Text: "SELECT * FROM c WHERE c.LastName = 'Andersen'"})
	require.True(t, pager.More())
	page, err := pager.NextPage(ctx)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.JSONEq(t, `{"id":"Andersen.1","LastName":"Andersen"}`, string(page.Items[0]))
	assert.Equal(t, 0.5, page.RequestCharge)
	assert.False(t, pager.More())
	api.AssertExpectations(t)
}

func TestQueryPager_FallsBackToScan(t *testing.T) {
	ctx := context.Background()
	api := new(MockAPI)
	api.On("Scan", ctx, mock.MatchedBy(func(in *sdk.ScanInput) bool {
		return aws.ToString(in.FilterExpression) == "#n0.#n1 = :v0"
	})).Return(&sdk.ScanOutput{}, nil).Once()

	pager := testContainer(api).NewQueryPager(storagemodels.QuerySpec{Text: "SELECT * FROM c WHERE c.Address.City = 'Seattle'"})
	page, err := pager.NextPage(ctx)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.False(t, pager.More())
	api.AssertExpectations(t)
}

func TestQueryPager_InvalidQuery(t *testing.T) {
	pager := testContainer(new(MockAPI)).NewQueryPager(storagemodels.QuerySpec{Text: "DROP TABLE c"})
	_, err := pager.NextPage(context.Background())
	assert.True(t, storeerrors.IsValidationError(err))
	assert.False(t, pager.More())
}

func TestBuildExpression(t *testing.T) {
	stmt, err := query.Parse("SELECT * FROM c WHERE c.LastName = 'Andersen' AND c.Address.City = 'Seattle' AND c.Nick != null AND c.Grade <> 4")
	require.NoError(t, err)

	expr, err := buildExpression(stmt, "LastName")
	require.NoError(t, err)
	assert.Equal(t, "#n0 = :v0", aws.ToString(expr.keyCondition))
	assert.Equal(t,
		"#n1.#n2 = :v1 AND (attribute_type(#n3, :v2) AND NOT attribute_type(#n3, :v2)) AND (attribute_type(#n4, :v4) AND #n4 <> :v3)",
		aws.ToString(expr.filter))
	assert.Equal(t, map[string]string{"#n0": "LastName", "#n1": "Address", "#n2": "City", "#n3": "Nick", "#n4": "Grade"}, expr.names)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "NULL"}, expr.values[":v2"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "4"}, expr.values[":v3"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "N"}, expr.values[":v4"])

	mismatch, err := query.Parse("SELECT * FROM c WHERE c.LastName != 3 AND c.IsRegistered != true AND c.City != 'Seattle'")
	require.NoError(t, err)
	expr, err = buildExpression(mismatch, "LastName")
	require.NoError(t, err)
	assert.Nil(t, expr.keyCondition)
	assert.Equal(t,
		"(attribute_type(#n0, :v1) AND #n0 <> :v0) AND (attribute_type(#n1, :v3) AND #n1 <> :v2) AND (attribute_type(#n2, :v5) AND #n2 <> :v4)",
		aws.ToString(expr.filter))
	assert.Equal(t, &types.AttributeValueMemberS{Value: "N"}, expr.values[":v1"], "a string attribute never satisfies != 3")
	assert.Equal(t, &types.AttributeValueMemberS{Value: "BOOL"}, expr.values[":v3"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "S"}, expr.values[":v5"])

	all, err := query.Parse("SELECT * FROM c")
	require.NoError(t, err)
	expr, err = buildExpression(all, "LastName")
	require.NoError(t, err)
	assert.Nil(t, expr.keyCondition)
	assert.Nil(t, expr.filter)
	assert.Nil(t, expr.names)
	assert.Nil(t, expr.values)
}

func TestDeleteDatabase(t *testing.T) {
	ctx := context.Background()
	api := new(MockAPI)
	api.On("ListTables", ctx, mock.Anything).Return(&sdk.ListTablesOutput{
		TableNames: []string{"FamilyDatabase.A", "FamilyDatabase.B", "Zoo.Animals"},
	}, nil)
	api.On("DeleteTable", ctx, mock.MatchedBy(func(in *sdk.DeleteTableInput) bool {
		return aws.ToString(in.TableName) == "FamilyDatabase.A"
	})).Return(&sdk.DeleteTableOutput{}, nil).Once()
	api.On("DeleteTable", ctx, mock.MatchedBy(func(in *sdk.DeleteTableInput) bool {
		return aws.ToString(in.TableName) == "FamilyDatabase.B"
	})).Return(nil, &types.ResourceNotFoundException{Message: aws.String("gone")}).Once()

	db := &Database{client: NewClientWithAPI(api, ""), id: "FamilyDatabase"}
	resp, err := db.Delete(ctx)
	require.NoError(t, err)
	assert.Equal(t, "FamilyDatabase", resp.ID)
	api.AssertExpectations(t)
	api.AssertNumberOfCalls(t, "DeleteTable", 2)
}

func TestDeleteDatabase_Empty(t *testing.T) {
	ctx := context.Background()
	api := new(MockAPI)
	api.On("ListTables", ctx, mock.Anything).Return(&sdk.ListTablesOutput{}, nil)

	db := &Database{client: NewClientWithAPI(api, ""), id: "FamilyDatabase"}
	_, err := db.Delete(ctx)
	assert.True(t, storeerrors.IsNotFound(err))
}

func TestMapError(t *testing.T) {
	c := NewClientWithAPI(new(MockAPI), "http://localhost:8000")

	err := c.mapError(&smithy.GenericAPIError{Code: "UnrecognizedClientException", Message: "bad key"}, "account", "")
	assert.True(t, storeerrors.IsConnectionError(err))

	err = c.mapError(&smithy.GenericAPIError{Code: "ValidationException", Message: "bad expression"}, "item", "x")
	assert.True(t, storeerrors.IsValidationError(err))

	other := errors.New("throughput exceeded")
	err = c.mapError(other, "item", "x")
	assert.ErrorIs(t, err, other)
	assert.False(t, storeerrors.IsConflict(err))
}

func TestPing(t *testing.T) {
	ctx := context.Background()
	api := new(MockAPI)
	api.On("ListTables", ctx, mock.Anything).Return(nil, &smithy.GenericAPIError{Code: "InvalidSignatureException"})

	err := NewClientWithAPI(api, "http://localhost:8000").Ping(ctx)
	assert.True(t, storeerrors.IsConnectionError(err))
}
