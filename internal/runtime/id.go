package runtime

import "github.com/google/uuid"

// newTxID returns a time-ordered UUIDv7, so journal rows sort by creation.
func newTxID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
