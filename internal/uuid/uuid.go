// Package uuid generates the client-side identifiers stamped on every
// locally created row before it ever reaches the backend.
package uuid

import "github.com/google/uuid"

// New returns a random v4 identifier. The server echoes it back on
// create responses, which is how rows are matched across devices and
// how replayed creates are deduplicated.
func New() string {
	return uuid.New().String()
}
