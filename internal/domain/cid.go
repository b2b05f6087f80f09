package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// NewCID returns a fresh correlator for a Request, echoed back by its
// Response.
func NewCID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate cid: %w", err)
	}
	return id.String(), nil
}
