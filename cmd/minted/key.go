package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/minted/minted-core/pkg/crypto"
	"github.com/spf13/cobra"
)

var (
	keyOutPrivate string
	keyOutPublic  string
	keyShowDID    bool
	keyForce      bool
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage issuer keys",
}

var keyGenCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate a new Ed25519 issuer key pair",
	Long: `Generate a new Ed25519 key pair for signing mints.

Outputs:
  - Private key in JWK format (keep it on the issuing device)
  - Public key in JWK format
  - did:key identifier, used as the JWK kid and shown to collectors`,
	Example: `  # Generate keys at the configured issuer.key_file location
  minted key gen

  # Generate keys with custom names
  minted key gen --out-priv cafe.jwk --out-pub cafe.pub.jwk`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		privPath := keyOutPrivate
		if privPath == "" {
			privPath = cfg.Issuer.KeyFile
		}
		pubPath := keyOutPublic
		if pubPath == "" {
			pubPath = publicKeyPath(privPath)
		}

		if _, err := os.Stat(privPath); err == nil && !keyForce {
			return fmt.Errorf("%s already exists; use --force to replace it", privPath)
		}
		if err := os.MkdirAll(filepath.Dir(privPath), 0700); err != nil {
			return fmt.Errorf("failed to create key directory: %w", err)
		}

		kp, err := crypto.GenerateKeyPair()
		if err != nil {
			return err
		}
		if err := crypto.SaveKeyPair(kp, privPath, pubPath); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if keyShowDID {
			fmt.Fprintln(out, kp.IssuerDID())
			return nil
		}
		fmt.Fprintf(out, "✅ Private Key saved to %s\n", privPath)
		fmt.Fprintf(out, "✅ Public Key saved to %s\n", pubPath)
		fmt.Fprintf(out, "🔑 did:key: %s\n", kp.IssuerDID())
		return nil
	},
}

// publicKeyPath derives issuer.pub.jwk from issuer.jwk.
func publicKeyPath(privPath string) string {
	if base, ok := strings.CutSuffix(privPath, ".jwk"); ok {
		return base + ".pub.jwk"
	}
	return privPath + ".pub"
}

func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keyGenCmd)

	keyGenCmd.Flags().StringVar(&keyOutPrivate, "out-priv", "", "Output path for private key (default: issuer.key_file)")
	keyGenCmd.Flags().StringVar(&keyOutPublic, "out-pub", "", "Output path for public key (default: <out-priv>.pub.jwk)")
	keyGenCmd.Flags().BoolVar(&keyForce, "force", false, "Replace an existing private key")
	keyGenCmd.Flags().BoolVar(&keyShowDID, "show-did", false, "Only output did:key to stdout (for scripting)")
}
