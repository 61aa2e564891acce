package events

import (
	"github.com/google/uuid"
	"github.com/tinylib/msgp/msgp"
)

// UUIDExtensionType is the MessagePack extension type for UUIDs.
// We use type 10 which is in the user-defined range (0-127).
// Types 3, 4, 5 are used by msgp for complex64, complex128, and time.Time.
const UUIDExtensionType int8 = 10

// UUIDSize is the fixed size of a UUID (16 bytes).
const UUIDSize = 16

func init() {
	// Register the UUID extension so msgp can decode it back to the correct type
	msgp.RegisterExtension(UUIDExtensionType, func() msgp.Extension {
		return new(UUID)
	})
}

// UUID is a 16 byte event identifier that implements msgp.Extension.
//
// Event IDs generated by the client are random UUIDs; encoding them as an
// extension keeps them at 18 bytes on the wire instead of 37.
type UUID [UUIDSize]byte

// Compile-time assertion.
var _ msgp.Extension = (*UUID)(nil)

// ParseUUID parses the hyphenated string form of a UUID.
//
// Returns:
//   - UUID: The parsed value
//   - bool: false if s is not a UUID
func ParseUUID(s string) (UUID, bool) {
	u, err := uuid.Parse(s)
	if err != nil {
		return UUID{}, false
	}

	return UUID(u), true
}

// ExtensionType returns the MessagePack extension type for UUID.
func (u *UUID) ExtensionType() int8 {
	return UUIDExtensionType
}

// Len returns the encoded length of a UUID (always 16 bytes).
func (u *UUID) Len() int {
	return UUIDSize
}

// MarshalBinaryTo copies the UUID bytes into the destination buffer.
func (u *UUID) MarshalBinaryTo(b []byte) error {
	copy(b, u[:])

	return nil
}

// UnmarshalBinary copies bytes from the source buffer into the UUID.
func (u *UUID) UnmarshalBinary(b []byte) error {
	if len(b) != UUIDSize {
		return msgp.ErrShortBytes
	}
	copy(u[:], b)

	return nil
}

// String returns the UUID in standard hyphenated format.
//
// Returns:
//   - string: UUID string like "550e8400-e29b-41d4-a716-446655440000"
func (u *UUID) String() string {
	return uuid.UUID(*u).String()
}
