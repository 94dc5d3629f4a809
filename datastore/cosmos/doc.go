/*
Package cosmos provides the Azure Cosmos DB implementation of the datastore client capability.

The backend is a thin adapter over azcosmos: databases, containers and items map one to one.
Create-if-not-exists calls attempt the create and read the existing resource when the service
answers 409 Conflict, so Created tells the caller which branch ran.

Queries are passed to the service unchanged, together with their parameters, and are scoped to
a single logical partition. The query must therefore contain an equality on the container's
partition key:

	SELECT * FROM c WHERE c.LastName = 'Andersen'

Service errors are translated by status code: 404 NotFound, 409 Conflict, 400 Validation,
401/403 Connection.
*/
package cosmos
