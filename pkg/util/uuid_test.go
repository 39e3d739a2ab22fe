package util

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestContentUUID(t *testing.T) {
	a := ContentUUID([]byte("ACGT"), []byte("!!!!"))
	b := ContentUUID([]byte("ACGT!!!!"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, uuid.Nil, a)
	assert.NotEqual(t, a, ContentUUID([]byte("ACGA!!!!")))
}

func TestMd5ThenHex(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", Md5ThenHex(nil))
	assert.Len(t, Md5ThenHex([]byte("idencomp")), 32)
}
