package util

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/google/uuid"
)

// Md5ThenHex is a quick hasher
func Md5ThenHex(value []byte) string {
	hasher := md5.New()
	hasher.Write(value)
	return hex.EncodeToString(hasher.Sum(nil))
}

// ContentUUID derives a stable identifier from the concatenation of parts.
func ContentUUID(parts ...[]byte) uuid.UUID {
	hasher := md5.New()
	for _, p := range parts {
		hasher.Write(p)
	}
	hash := hasher.Sum(nil)
	id, err := uuid.FromBytes(hash[:16])
	if err != nil {
		return uuid.Nil
	}
	return id
}
