// Package config loads the demo configuration from an optional .env file and the environment.
package config
