package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "documents/abc/lease.pdf", ObjectKey("abc", "lease.pdf"))
}
