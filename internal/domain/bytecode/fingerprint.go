// Package bytecode derives deterministic version identifiers from compiled
// contract bytecode.
package bytecode

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/trebuchet-org/treb-release/internal/domain"
)

// cborMapMajorType is CBOR major type 5 (map) in the top three bits
const cborMapMajorType = 0x5

var libraryPlaceholder = regexp.MustCompile(`__\$[0-9a-fA-F]{34}\$__`)

// StripMetadata removes the CBOR-encoded metadata solc appends to bytecode.
// The final two bytes hold the metadata length (big endian); the region is
// only stripped when it fits inside code and starts with a CBOR map header.
// Bytecode without a recognisable trailer is returned unchanged.
func StripMetadata(code []byte) []byte {
	if len(code) < 2 {
		return code
	}

	metadataLen := int(binary.BigEndian.Uint16(code[len(code)-2:]))
	start := len(code) - 2 - metadataLen
	if metadataLen == 0 || start < 0 {
		return code
	}
	if code[start]>>5 != cborMapMajorType {
		return code
	}

	return code[:start]
}

// Fingerprint returns the keccak256 of the metadata-stripped bytecode as
// lowercase hex without a 0x prefix. Two compilations that differ only in
// metadata produce the same fingerprint.
func Fingerprint(code []byte) (string, error) {
	if len(code) == 0 {
		return "", &domain.InvalidBytecodeError{Reason: "empty bytecode"}
	}
	return hex.EncodeToString(crypto.Keccak256(StripMetadata(code))), nil
}

// Decode parses artifact bytecode hex, with or without the 0x prefix.
// Unlinked library references are rejected since the result would not be
// deployable.
func Decode(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")

	if s == "" {
		return nil, &domain.InvalidBytecodeError{Reason: "empty bytecode"}
	}
	if loc := libraryPlaceholder.FindStringIndex(s); loc != nil {
		return nil, &domain.InvalidBytecodeError{
			Reason: fmt.Sprintf("unlinked library placeholder %s", s[loc[0]:loc[1]]),
		}
	}
	if len(s)%2 != 0 {
		return nil, &domain.InvalidBytecodeError{Reason: "odd number of hex characters"}
	}

	code, err := hex.DecodeString(s)
	if err != nil {
		return nil, &domain.InvalidBytecodeError{Reason: err.Error()}
	}
	return code, nil
}

// FingerprintHex decodes artifact hex and fingerprints it
func FingerprintHex(s string) (string, error) {
	code, err := Decode(s)
	if err != nil {
		return "", err
	}
	return Fingerprint(code)
}
