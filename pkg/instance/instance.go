// Package instance names the running process in logs and lock values.
package instance

import (
	"os"

	"github.com/storefront-labs/storefront/pkg/env"
)

// GetID returns the instance identifier, falling back to the hostname.
func GetID() string {
	if id := env.First("", "STOREFRONT_INSTANCE_ID", "DYNO", "HOSTNAME"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
