package common

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

const (
	// A peg-in id is the BTC transaction id of the deposit,
	// 32 bytes = 64 hex characters, carried with a 0x prefix.
	PeginIdHexLen = 64
)

// Trim 0x or 0X prefix off the string.
func Trim0xPrefix(str string) string {
	s := strings.TrimPrefix(str, "0x")
	return strings.TrimPrefix(s, "0X")
}

func Prepend0xPrefix(str string) string {
	if strings.HasPrefix(str, "0x") || strings.HasPrefix(str, "0X") {
		return str
	}
	return "0x" + str
}

// NormalizePeginId converts any accepted spelling of a peg-in id
// (upper/lower case, with/without 0x) to the single canonical form:
// 0x-prefixed, lowercase, 64 hex characters.
// The same id must never appear twice under different spellings
// in local storage, so every write path goes through here.
func NormalizePeginId(id string) (string, error) {
	s := strings.ToLower(Trim0xPrefix(strings.TrimSpace(id)))
	if len(s) != PeginIdHexLen {
		return "", fmt.Errorf("pegin id must be %d hex chars, got %d", PeginIdHexLen, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("pegin id is not valid hex: %v", err)
	}
	return "0x" + s, nil
}

// MustNormalizePeginId is for tests and constants known to be well-formed.
func MustNormalizePeginId(id string) string {
	s, err := NormalizePeginId(id)
	if err != nil {
		panic(err)
	}
	return s
}

// IsValidXOnlyPubkey reports whether the hex string is a
// well-formed 32-byte x-only BTC public key (BIP-340 encoding).
func IsValidXOnlyPubkey(pubkeyHex string) bool {
	s := Trim0xPrefix(pubkeyHex)
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// The returned string has No 0x prefix
func ByteSliceToPureHexStr(b []byte) string {
	return Trim0xPrefix(ethcommon.Bytes2Hex(b))
}

func HexStrToByteSlice(hexStr string) []byte {
	return ethcommon.Hex2Bytes(Trim0xPrefix(hexStr))
}

// RandBytes32 generates [32]byte with random values
func RandBytes32() [32]byte {
	var b [32]byte
	n, err := rand.Read(b[:])

	if err != nil {
		return [32]byte{}
	}
	if n != 32 {
		return [32]byte{}
	}

	return b
}

// RandPeginId produces a random canonical peg-in id (tests, simulators).
func RandPeginId() string {
	b := RandBytes32()
	return "0x" + hex.EncodeToString(b[:])
}

// Shorten shortens a hex string so that both sides have n characters and
// the rest is replaced with "...". Used when surfacing ids to users.
func Shorten(hexStr string, n int) string {
	str := Trim0xPrefix(hexStr)

	if len(str) <= n*2 {
		return Prepend0xPrefix(str)
	}
	return Prepend0xPrefix(str[:n] + "..." + str[len(str)-n:])
}
