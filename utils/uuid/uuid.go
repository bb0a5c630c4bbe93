package uuid

import (
	google_uuid "github.com/google/uuid"
)

// MustUUID returns a random UUID string.
// It panics if the random source fails.
func MustUUID() string {
	return google_uuid.Must(google_uuid.NewRandom()).String()
}
