package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/bitlend-io/vault-go/cmd"
	"github.com/bitlend-io/vault-go/pegin"
)

const (
	ENV_CONFIG_FILE_PATH = "VAULT_CONFIG"
)

func main() {
	// Tool to read environment variables
	viper.AutomaticEnv()

	// Accessing an environment variable of configuration file location.
	_config_file := viper.GetString(ENV_CONFIG_FILE_PATH)
	fmt.Printf("Vault daemon configuration file = %s\n", _config_file)

	// See if file exists
	if !cmd.FileExists(_config_file) {
		fmt.Printf("Vault daemon configuration file not found: %s\n", _config_file)
		return
	}

	// Read from config file.
	success := initializeViper(_config_file)
	if !success {
		return
	}

	// Make the configuration
	vsc := PrepareVaultServerConfig()
	if vsc == nil {
		fmt.Printf("Error loading vault daemon configuration\n")
		return
	}

	fmt.Println("Starting vault daemon... press Ctrl+C to kill the server")
	// Start server and block.
	cmd.StartVaultServerAndWait(vsc)
}

func initializeViper(filePath string) bool {
	viper.SetConfigFile(filePath)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("Error reading configuration file, %s", err)
		return false
	}
	return true
}

// PrepareVaultServerConfig reads configuration variables and returns a VaultServerConfig.
func PrepareVaultServerConfig() *cmd.VaultServerConfig {

	// *** prepare objects that aren't string type ***

	// The daemon ships with the simulated chain reader until a real
	// contract reader lands. Seed data comes from the demo provider.
	chainReader := pegin.NewSimulatedChainReader()

	// *** end of preparing objects ***

	return &cmd.VaultServerConfig{
		// account side
		Account:       viper.GetString("ACCOUNT_ADDR"),
		WalletPrivKey: viper.GetString("WALLET_PRIV_KEY"),
		// state side
		DbFilePath: viper.GetString("DB_FILE_PATH"),
		// chain side
		ChainReader:      chainReader,
		MonitorShortSecs: viper.GetInt64("MONITOR_SHORT_SECS"),
		MonitorLongSecs:  viper.GetInt64("MONITOR_LONG_SECS"),
		// Http side
		HttpIp:   viper.GetString("HTTP_IP"),
		HttpPort: viper.GetString("HTTP_PORT"),
		// Embedded demo provider
		ProviderHttpIp:   viper.GetString("PROVIDER_HTTP_IP"),
		ProviderHttpPort: viper.GetString("PROVIDER_HTTP_PORT"),
	}
}
