package utils

import (
	"unicode/utf16"

	"github.com/google/uuid"
)

// NewID returns a random (version 4) UUID string for new entities.
func NewID() string {
	return uuid.NewString()
}

// HashID maps key onto a non-negative integer alarm id.
//
// The value is the classic 31-multiplier string hash over UTF-16 code units,
// truncated to 32 bits after every step, then made absolute. Alarm ids already
// registered on devices were produced this way, so the arithmetic must not
// change.
func HashID(key string) int64 {
	var h int32
	for _, unit := range utf16.Encode([]rune(key)) {
		h = (h << 5) - h + int32(unit)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return v
}
