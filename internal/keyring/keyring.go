package keyring

import (
	"fmt"
	"os"

	zkr "github.com/zalando/go-keyring"
)

const (
	serviceName = "julesmcp"
	accountName = "browserbase-api-key"
)

// ErrNotFound is returned when no key is stored.
var ErrNotFound = zkr.ErrNotFound

// GetAPIKey retrieves the Browserbase API key from the OS keychain.
func GetAPIKey() (string, error) {
	key, err := zkr.Get(serviceName, accountName)
	if err != nil {
		return "", fmt.Errorf("keychain get: %w", err)
	}
	return key, nil
}

// SetAPIKey stores the Browserbase API key in the OS keychain.
func SetAPIKey(key string) error {
	return zkr.Set(serviceName, accountName, key)
}

// DeleteAPIKey removes the Browserbase API key from the OS keychain.
func DeleteAPIKey() error {
	return zkr.Delete(serviceName, accountName)
}

// Available returns true if the OS keychain is functional.
// Returns false if JULES_KEYRING_DISABLED=1 is set (opt-in for headless/CI/Docker).
// Otherwise probes the keychain with a test write/read/delete cycle.
func Available() bool {
	if os.Getenv("JULES_KEYRING_DISABLED") == "1" {
		return false
	}
	testService := "julesmcp-keyring-probe"
	testAccount := "probe"
	if err := zkr.Set(testService, testAccount, "ok"); err != nil {
		return false
	}
	_ = zkr.Delete(testService, testAccount)
	return true
}
