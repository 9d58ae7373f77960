package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/minted/minted-core/internal/logging"
	"github.com/minted/minted-core/pkg/collection"
	"github.com/minted/minted-core/pkg/crypto"
	"github.com/minted/minted-core/pkg/did"
	"github.com/minted/minted-core/pkg/store"
	"github.com/spf13/cobra"
)

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Manage the mints you have collected",
}

// withCollection opens the collection store for the duration of fn.
func withCollection(cmd *cobra.Command, fn func(c *collection.Collection) error) error {
	st, err := openStore(cmd.Context(), store.NamespaceCollection)
	if err != nil {
		return err
	}
	defer st.Close()

	return fn(collection.New(st, collection.WithLogger(logging.Named("collection"))))
}

var collectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List collected mints",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCollection(cmd, func(c *collection.Collection) error {
			mints, err := c.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(mints) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Your collection is empty.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tEXPIRES\tISSUER")
			for _, m := range mints {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s%s\t%s\n",
					m.ID, truncate(m.Title, 24), m.Status,
					m.ExpiresAt, expiredSuffix(m.ExpiresAt),
					did.Short(crypto.IssuerDID(m)),
				)
			}
			return w.Flush()
		})
	},
}

var collectionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a collected mint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCollection(cmd, func(c *collection.Collection) error {
			m, err := c.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printMint(cmd.OutOrStdout(), m)
			return nil
		})
	},
}

var collectionUseCmd = &cobra.Command{
	Use:   "use <id>",
	Short: "Mark a collected mint as used",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCollection(cmd, func(c *collection.Collection) error {
			if _, err := c.Use(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Mint %s marked used\n", args[0])
			return nil
		})
	},
}

var collectionRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a mint from your collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCollection(cmd, func(c *collection.Collection) error {
			if err := c.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🗑️  Mint %s removed\n", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(collectionCmd)
	collectionCmd.AddCommand(collectionListCmd, collectionShowCmd, collectionUseCmd, collectionRemoveCmd)
}
