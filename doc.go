/*
Package familystore runs a small provisioning and demo-data workflow against a document store.

The workflow is a linear sequence of steps over one connection:

	Start -> Connected -> DatabaseReady -> ContainerReady -> ItemInserted (or AlreadyExists)
	      -> Queried -> DatabaseDeleted -> Closed

Each step is a Runner method that takes the Session produced by OpenConnection, so steps can
be driven one at a time against any datastore.Client. Run executes them all and closes the
connection exactly once, whether the sequence completes or stops at the first error. Nothing
is rolled back.

Inserting the sample household is the only step that recovers from an error: a conflict
means the document already exists and is reported as OutcomeAlreadyExists.

Backends:
  - cosmos: Azure Cosmos DB (datastore/cosmos)
  - dynamodb: Amazon DynamoDB (datastore/ddb)
  - memory: in-process store for tests and local runs (datastore/mock)

Basic Usage:

	cfg, err := config.Load()
	if err != nil {
	    return err
	}
	if err := cfg.Validate(); err != nil {
	    return err
	}

	runner := familystore.NewRunner(cfg, familystore.WithLogger(logger))
	session, err := runner.Run(ctx)
	fmt.Println(session.State()) // Closed
*/
package familystore
