package instance

import (
	"os"
	"strings"
)

// GetID identifies this process to its peers, for lock ownership and logs.
// STOREFRONT_INSTANCE_ID wins, then the hostname.
func GetID() string {
	if id := strings.TrimSpace(os.Getenv("STOREFRONT_INSTANCE_ID")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "instance-0"
}
