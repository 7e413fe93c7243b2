package frame

import (
	"encoding/binary"
	"encoding/hex"
	"strconv"

	"github.com/google/uuid"
)

// CanonicalIdentifier renders a raw identifier field in its canonical
// string form: 16 bytes become an RFC 4122 UUID, one or two bytes a
// decimal integer (iBeacon major/minor), anything else a 0x-prefixed
// hex string (Eddystone namespace/instance).
func CanonicalIdentifier(raw []byte) string {
	switch {
	case len(raw) == 0:
		return ""
	case len(raw) == 16:
		if u, err := uuid.FromBytes(raw); err == nil {
			return u.String()
		}
		return "0x" + hex.EncodeToString(raw)
	case len(raw) <= 2:
		buf := make([]byte, 2)
		copy(buf[2-len(raw):], raw)
		return strconv.Itoa(int(binary.BigEndian.Uint16(buf)))
	default:
		return "0x" + hex.EncodeToString(raw)
	}
}
