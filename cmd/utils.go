package cmd

import (
	"fmt"
	"os"

	"github.com/bitlend-io/vault-go/common"
	"github.com/bitlend-io/vault-go/walletsigner"
)

// FileExists checks if a file exists and is readable
func FileExists(filePath string) bool {
	file, err := os.Open(filePath)
	if err != nil {
		return false
	}
	defer file.Close()
	return true
}

// Shared Helper function. Create a local taproot signer from a hex key.
func SetupLocalSigner(privKeyHex string) (*walletsigner.LocalSigner, error) {
	raw := common.HexStrToByteSlice(privKeyHex)
	if len(raw) != 32 {
		return nil, fmt.Errorf("wallet private key must be 32 bytes of hex, got %d", len(raw))
	}
	return walletsigner.NewLocalSigner(raw)
}
