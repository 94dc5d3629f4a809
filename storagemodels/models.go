/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

// ContainerProperties describes a container to provision.
type ContainerProperties struct {
	// ID is the container name, unique within its database.
	ID string
	// PartitionKeyPath is the document path used to shard the container, e.g. "/LastName".
	PartitionKeyPath string
}

// ResourceResponse is returned by database and container provisioning calls.
type ResourceResponse struct {
	// ID of the database or container.
	ID string
	// Created is false when the resource already existed.
	Created bool
	// RequestCharge is the cost reported by the store, in request units.
	RequestCharge float64
	// ActivityID identifies the request on the service side, when the backend reports one.
	ActivityID string
}

// ItemResponse is returned by single document operations.
type ItemResponse struct {
	// ID is the identifier the store recorded for the document.
	ID string
	// Value is the stored JSON document.
	Value []byte
	// RequestCharge is the cost reported by the store, in request units.
	RequestCharge float64
	ActivityID    string
}

// QueryParameter binds a named "@param" in query text to a value.
type QueryParameter struct {
	Name  string
	Value any
}

// QuerySpec is a read-only query against a single container.
type QuerySpec struct {
	// Text is the query, e.g. "SELECT * FROM c WHERE c.LastName = @name".
	Text string
	// Parameters are bound to "@name" placeholders in Text.
	Parameters []QueryParameter
}

// QueryPage is one page of query results as raw JSON documents.
type QueryPage struct {
	Items         [][]byte
	RequestCharge float64
	ActivityID    string
	// PageNumber is 1-based.
	PageNumber int
}
