package xid

import (
	"github.com/google/uuid"
)

// New returns prefix-<uuid v4>, e.g. "inv-3f0c...".
func New(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
