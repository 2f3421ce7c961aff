package domain

import (
	"crypto/rand"
	"strings"

	"github.com/oklog/ulid/v2"
)

// NewULID returns a fresh, lexically sortable identifier.
func NewULID() ulid.ULID {
	return ulid.MustNew(ulid.Now(), rand.Reader)
}

// NewCardID returns "<prefix>-<ulid>" in lower case.
func NewCardID(prefix string) string {
	return prefix + "-" + strings.ToLower(NewULID().String())
}
