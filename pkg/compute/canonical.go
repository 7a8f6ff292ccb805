package compute

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// CanonicalArgs renders formula arguments as the stable, key-sorted JSON
// encoding used for computation identity. encoding/json writes map keys in
// sorted order, which is exactly the canonical form.
func CanonicalArgs(args map[string]string) (string, error) {
	if args == nil {
		args = map[string]string{}
	}
	b, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("canonicalise args: %w", err)
	}
	return string(b), nil
}

// ArgsHash digests the canonical args encoding for the computation natural
// key. The column stores the hex digest so the key stays short regardless
// of argument size.
func ArgsHash(canonical string) string {
	sum := blake2b.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
