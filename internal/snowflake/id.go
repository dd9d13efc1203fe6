// Package snowflake generates time ordered identifiers for locally minted
// activities.
package snowflake

import (
	"math/rand"
	"time"
)

// ID is a 64 bit identifier.
// The top 48 bits are milliseconds since the epoch, the bottom 16 are random.
type ID uint64

// Now returns an ID for the current time.
func Now() ID {
	return TimeToID(time.Now())
}

// TimeToID converts a time.Time to a Snowflake ID.
func TimeToID(ts time.Time) ID {
	return ID(uint64(ts.UnixMilli())<<16 | uint64(rand.Intn(1<<16)))
}

// ToTime converts a Snowflake ID to a time.Time.
func (id ID) ToTime() time.Time {
	return time.UnixMilli(int64(id >> 16))
}

const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// String returns the ID as 13 characters of Crockford base32, which sort
// in the same order as the IDs themselves.
func (id ID) String() string {
	var buf [13]byte
	v := uint64(id)
	for i := len(buf) - 1; i >= 0; i-- {
		buf[i] = crockford[v&0x1f]
		v >>= 5
	}
	return string(buf[:])
}
