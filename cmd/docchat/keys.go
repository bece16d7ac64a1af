package main

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ternarybob/docchat/internal/interfaces"
	"github.com/ternarybob/docchat/internal/storage/badger"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage provider API keys held in the local KV store",
	Long: `Provider API keys can live in the Badger KV store instead of the environment.
Lookup order is environment, then KV store, then config file.`,
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored keys with masked values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withKV(func(kv interfaces.KeyValueStorage) error {
			all, err := kv.GetAll(cmd.Context())
			if err != nil {
				return err
			}
			printKeys(cmd.OutOrStdout(), all)
			return nil
		})
	},
}

var keysSetCmd = &cobra.Command{
	Use:     "set <name> <value>",
	Short:   "Store a key",
	Example: "  docchat keys set gemini_api_key AIza...",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withKV(func(kv interfaces.KeyValueStorage) error {
			isNew, err := kv.Upsert(cmd.Context(), args[0], args[1], "Set from CLI")
			if err != nil {
				return err
			}
			verb := "Updated"
			if isNew {
				verb = "Created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, args[0])
			return nil
		})
	},
}

var keysDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Remove a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withKV(func(kv interfaces.KeyValueStorage) error {
			err := kv.Delete(cmd.Context(), args[0])
			if errors.Is(err, interfaces.ErrKeyNotFound) {
				return fmt.Errorf("key %q not found", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		})
	},
}

func init() {
	keysCmd.AddCommand(keysListCmd, keysSetCmd, keysDeleteCmd)
}

// withKV opens the configured Badger store for the duration of fn
func withKV(fn func(kv interfaces.KeyValueStorage) error) error {
	storageConfig := config.Storage.Badger
	storageConfig.ResetOnStartup = false

	manager, err := badger.NewManager(logger, &storageConfig)
	if err != nil {
		return err
	}
	defer manager.Close()

	return fn(manager.KeyValueStorage())
}

func printKeys(w io.Writer, all map[string]string) {
	if len(all) == 0 {
		fmt.Fprintln(w, "No keys stored")
		return
	}

	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(w, "%-24s %s\n", name, maskValue(all[name]))
	}
}

// maskValue hides all but the ends of a secret
func maskValue(value string) string {
	if len(value) < 8 {
		return "••••••••"
	}
	return value[:4] + "..." + value[len(value)-4:]
}
