package compute

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Contract storage keys are byte strings composed of length-prefixed
// segments: every segment except the last carries a 2-byte big-endian
// length prefix, the last is raw. Map namespaces prefix all their segments
// because the map keys follow. Keys are stored and matched as hex strings
// so byte-level prefixes stay string prefixes.

// KeyType selects how the trailing segment of a map key is decoded.
type KeyType string

const (
	KeyTypeString KeyType = "string"
	KeyTypeNumber KeyType = "number"
	KeyTypeRaw    KeyType = "raw"
)

// KeySegment converts a segment value to its byte representation. Strings
// become their UTF-8 bytes, unsigned integers the 8-byte big-endian
// encoding, []byte passes through.
func KeySegment(segment any) ([]byte, error) {
	switch v := segment.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case uint64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, v)
		return b, nil
	case int:
		if v < 0 {
			return nil, fmt.Errorf("%w: negative key segment %d", ErrBadInput, v)
		}
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(v))
		return b, nil
	default:
		return nil, fmt.Errorf("%w: unsupported key segment type %T", ErrBadInput, segment)
	}
}

// Key composes a full storage key: all segments but the last are
// length-prefixed, the last is raw.
func Key(segments ...any) ([]byte, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: empty key", ErrBadInput)
	}
	var out []byte
	for i, seg := range segments {
		b, err := KeySegment(seg)
		if err != nil {
			return nil, err
		}
		if i < len(segments)-1 {
			out = appendLengthPrefixed(out, b)
		} else {
			out = append(out, b...)
		}
	}
	return out, nil
}

// KeyPrefix composes a map namespace prefix: every segment is
// length-prefixed because map keys follow it.
func KeyPrefix(segments ...any) ([]byte, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: empty key prefix", ErrBadInput)
	}
	var out []byte
	for _, seg := range segments {
		b, err := KeySegment(seg)
		if err != nil {
			return nil, err
		}
		out = appendLengthPrefixed(out, b)
	}
	return out, nil
}

func appendLengthPrefixed(dst, segment []byte) []byte {
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(segment)))
	dst = append(dst, l[:]...)
	return append(dst, segment...)
}

// EncodeKey renders a raw storage key as the hex string the store keeps.
func EncodeKey(key []byte) string {
	return hex.EncodeToString(key)
}

// DecodeKey parses a stored hex key back to bytes.
func DecodeKey(hexKey string) ([]byte, error) {
	b, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed stored key %q", ErrTypeMismatch, hexKey)
	}
	return b, nil
}

// DecodeTrailing interprets the trailing segment of a map entry according
// to the requested key type. Number segments are the 8-byte big-endian
// encoding; shorter values fall back to their raw hex to avoid inventing
// digits.
func DecodeTrailing(trailing []byte, keyType KeyType) string {
	switch keyType {
	case KeyTypeNumber:
		if len(trailing) == 8 {
			return strconv.FormatUint(binary.BigEndian.Uint64(trailing), 10)
		}
		return hex.EncodeToString(trailing)
	case KeyTypeRaw:
		return hex.EncodeToString(trailing)
	default:
		return string(trailing)
	}
}
