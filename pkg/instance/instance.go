package instance

import "os"

// GetID returns the process instance identifier used in startup logs.
// Cloud Run exposes the revision; elsewhere the hostname is used.
func GetID() string {
	for _, key := range []string{"K_REVISION", "HOSTNAME"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return "local"
}
