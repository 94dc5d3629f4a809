// Package family defines the household document stored by the demo and its sample fixture.
package family
