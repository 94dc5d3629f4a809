/*
Package storagemodels defines the request and response types shared by every datastore backend.

Key Types:

ContainerProperties:
Describes a container and the path of its partition key:

	props := ContainerProperties{
	    ID:               "FamilyContainer",
	    PartitionKeyPath: "/LastName",
	}

QuerySpec:
Query text plus "@param" bindings:

	spec := QuerySpec{
	    Text: "SELECT * FROM c WHERE c.LastName = @name",
	    Parameters: []QueryParameter{
	        {Name: "@name", Value: "Andersen"},
	    },
	}

QueryOptions:
Paging behavior for query pagers:

	opts := []QueryOption{
	    WithPageSize(25),
	    WithProgressHandler(func(p QueryProgress) {
	        log.Printf("read %d documents, %.2f RUs", p.ItemsRead, p.RequestCharge)
	    }),
	}

Every response carries the request charge reported by the store so callers can account for cost
without knowing which backend served them.
*/
package storagemodels
