/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package family

import (
	_ "embed"
	"fmt"

	"github.com/goccy/go-json"
	storeerrors "github.com/suparena/familystore/errors"
	"gopkg.in/yaml.v3"
)

// PartitionKeyPath is the container partition key for households.
const PartitionKeyPath = "/LastName"

// Household is one family document. Parents, children and pets are embedded.
type Household struct {
	// Unique identifier within the container.
	// Required: true
	ID string `json:"id" yaml:"id"`

	// Surname; the partition key.
	// Required: true
	LastName string `json:"LastName" yaml:"lastName"`

	Parents  []Parent `json:"Parents" yaml:"parents"`
	Children []Child  `json:"Children" yaml:"children"`
	Address  Address  `json:"Address" yaml:"address"`

	IsRegistered bool `json:"IsRegistered" yaml:"isRegistered"`
}

// Parent is a parent embedded in a household.
type Parent struct {
	FamilyName string `json:"FamilyName,omitempty" yaml:"familyName"`
	FirstName  string `json:"FirstName" yaml:"firstName"`
}

// Child is a child embedded in a household. Grade is the school grade level.
type Child struct {
	FamilyName string `json:"FamilyName,omitempty" yaml:"familyName"`
	FirstName  string `json:"FirstName" yaml:"firstName"`
	Gender     string `json:"Gender" yaml:"gender"`
	Grade      int    `json:"Grade" yaml:"grade"`
	Pets       []Pet  `json:"Pets" yaml:"pets"`
}

// Pet belongs to a child.
type Pet struct {
	GivenName string `json:"GivenName" yaml:"givenName"`
}

// Address is where the household lives.
type Address struct {
	State  string `json:"State" yaml:"state"`
	County string `json:"County" yaml:"county"`
	City   string `json:"City" yaml:"city"`
}

// Validate checks the fields the store requires.
func (h Household) Validate() error {
	if h.ID == "" {
		return storeerrors.NewValidationError("id", "household id is required")
	}
	if h.LastName == "" {
		return storeerrors.NewValidationError("LastName", "surname is required; it is the partition key")
	}
	return nil
}

// PartitionKey returns the value stored under PartitionKeyPath.
func (h Household) PartitionKey() string {
	return h.LastName
}

// String renders the household as its JSON document.
func (h Household) String() string {
	b, err := json.Marshal(h)
	if err != nil {
		return fmt.Sprintf("Household{%s}", h.ID)
	}
	return string(b)
}

//go:embed sample.yaml
var sampleYAML []byte

// SampleHousehold returns the Andersen family used by the demo workflow.
func SampleHousehold() (Household, error) {
	var h Household
	if err := yaml.Unmarshal(sampleYAML, &h); err != nil {
		return Household{}, fmt.Errorf("failed to decode sample household: %w", err)
	}
	return h, h.Validate()
}
