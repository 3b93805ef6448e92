package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/julestools/julesmcp/internal/keyring"
)

// AuthCmd creates the auth command group for keychain-backed credentials.
func AuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the Browserbase API key in the OS keychain",
		Long: `Store the Browserbase API key in the OS keychain instead of the
environment. Config resolution falls back to the keychain whenever
BROWSERBASE_API_KEY is unset.`,
	}

	cmd.AddCommand(authSetKeyCmd())
	cmd.AddCommand(authClearCmd())
	return cmd
}

func authSetKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-key [api-key]",
		Short: "Store the Browserbase API key",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var key string
			if len(args) > 0 {
				key = args[0]
			} else {
				fmt.Print("API key: ")
				line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
				key = strings.TrimSpace(line)
			}
			if key == "" {
				fmt.Fprintln(os.Stderr, "no API key given")
				os.Exit(1)
			}

			if err := keyring.SetAPIKey(key); err != nil {
				fmt.Fprintf(os.Stderr, "store key: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("API key stored in the OS keychain")
		},
	}
}

func authClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the Browserbase API key",
		Run: func(cmd *cobra.Command, args []string) {
			err := keyring.DeleteAPIKey()
			if errors.Is(err, keyring.ErrNotFound) {
				fmt.Println("no API key stored")
				return
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "remove key: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("API key removed from the OS keychain")
		},
	}
}
