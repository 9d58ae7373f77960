package main

import (
	"errors"
	"fmt"

	"github.com/minted/minted-core/pkg/crypto"
	"github.com/minted/minted-core/pkg/did"
	"github.com/minted/minted-core/pkg/ingest"
	"github.com/spf13/cobra"
)

var verifyIssuer string

var verifyCmd = &cobra.Command{
	Use:   "verify <carrier|json>",
	Short: "Decode and verify a mint without storing it",
	Long: `Decode a scanned mint (carrier URL, compact JSON or long-form JSON),
check that it carries an id, signature and issuer key, and verify the
signature against the embedded key. Nothing is written.

With --issuer, the mint must also be signed by that did:key.`,
	Example: `  minted verify "https://minted.app/m?m=eyJ4IjoyLC..."

  # Only trust mints from a known cafe
  minted verify --issuer did:key:z6Mk... "https://minted.app/m?m=..."`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var wantIssuer string
		if verifyIssuer != "" {
			pub, err := did.PublicKeyFromKeyDID(verifyIssuer)
			if err != nil {
				return fmt.Errorf("invalid --issuer: %w", err)
			}
			wantIssuer = did.NewKeyDID(pub)
		}

		c, err := newCodec()
		if err != nil {
			return err
		}

		m, form, err := c.Parse(args[0])
		if err != nil {
			return fmt.Errorf("❌ could not decode mint: %w", err)
		}
		if err := ingest.CheckStructure(m); err != nil {
			return fmt.Errorf("❌ %w", err)
		}

		ok, err := crypto.VerifyMint(m)
		if err != nil {
			return fmt.Errorf("❌ %w", err)
		}
		if !ok {
			return errors.New("❌ signature does not match the mint contents")
		}
		if got := crypto.IssuerDID(m); wantIssuer != "" && got != wantIssuer {
			return fmt.Errorf("❌ mint is signed by %s, not %s", did.Short(got), did.Short(wantIssuer))
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✅ Valid %s mint (%s form)\n", m.Kind(), form)
		printMint(out, m)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&verifyIssuer, "issuer", "", "Require the mint to be signed by this did:key")
}
