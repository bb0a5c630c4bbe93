package keys

import (
	"bytes"
	"encoding/binary"
)

// Int64ToKey constructs a key from an
// int64. Non-negative values sort in
// numeric order.
func Int64ToKey(i int64) [8]byte {
	var k [8]byte

	binary.BigEndian.PutUint64(k[:], uint64(i))

	return k
}

// KeyToInt64 constructs an int64 from a
// byte array
func KeyToInt64(k [8]byte) int64 {
	return int64(binary.BigEndian.Uint64(k[:]))
}

// Key is a single key
type Key []byte

// Compare compares two keys
// -1 means a < b
// 1 means a > b
// 0 means a = b
func Compare(a, b Key) int {
	return bytes.Compare(a, b)
}

// Join concatenates key parts into
// a single key.
func Join(parts ...[]byte) Key {
	size := 0

	for _, part := range parts {
		size += len(part)
	}

	key := make(Key, 0, size)

	for _, part := range parts {
		key = append(key, part...)
	}

	return key
}
