/*
Package ddb provides a DynamoDB implementation of the datastore client capability.

DynamoDB has no database resource, so the model is mapped onto tables:
  - a database is a table-name namespace "<database>."
  - a container is the table "<database>.<container>", hash key = partition key attribute,
    range key = "id"
  - a document is an item; JSON is converted with the attributevalue package

Key Features:

Conditional Inserts:
CreateItem uses "attribute_not_exists(id)", so inserting an existing document fails with a
ConflictError and leaves the stored item untouched. The request charge is the consumed
capacity reported by DynamoDB.

Query Translation:
Query text is parsed by the query package and rendered as DynamoDB expressions:

	SELECT * FROM c WHERE c.LastName = 'Andersen' AND c.Address.City = 'Seattle'

becomes a paged Query with

	KeyConditionExpression: "#n0 = :v0"
	FilterExpression:       "#n1.#n2 = :v1"

Statements that do not pin the partition key run as a paged Scan with a filter.

Connecting:

	client, err := ddb.NewClient(ctx, datastore.Options{
	    Region:      "us-east-1",
	    AccessKeyID: os.Getenv("AWS_ACCESS_KEY_ID"),
	    Key:         os.Getenv("Primary"),
	    Endpoint:    "http://localhost:8000", // DynamoDB Local, optional
	})
*/
package ddb
