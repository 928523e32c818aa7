package cmd

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"
)

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Generate dashboard cookie keys as .env lines (base64)",
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, block := make([]byte, 64), make([]byte, 32)
			for _, b := range [][]byte{hash, block} {
				if _, err := rand.Read(b); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "COOKIE_HASH_KEY=%s\n", base64.StdEncoding.EncodeToString(hash))
			fmt.Fprintf(cmd.OutOrStdout(), "COOKIE_BLOCK_KEY=%s\n", base64.StdEncoding.EncodeToString(block))
			return nil
		},
	}
}
