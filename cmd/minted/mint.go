package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/minted/minted-core/pkg/issuer"
	"github.com/minted/minted-core/pkg/mint"
	"github.com/spf13/cobra"
)

var (
	issueKeyFile     string
	issueTitle       string
	issueDescription string
	issueEffect      string
	issueColor       string
	issueImage       string
	issueUnits       int
	issueExpires     string

	redeemUnits int
)

var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Issue and manage your mints",
	Long: `Issue and manage the mints you hand out as an issuer.

Mints are signed with the issuer key (see 'minted key gen') and kept in
the issuer store. Each one is carried to collectors as a carrier URL that
fits in a QR code.`,
}

var mintIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Create, sign and store a new mint",
	Example: `  # One free coffee, valid for the configured number of months
  minted mint issue --title Coffee --desc "One espresso" --color "#aa5500"

  # Ten-visit punch card expiring at the end of 2027
  minted mint issue --title "Ten visits" --units 10 --effect holographic --color "#2244ff" --expires 2027-12`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		svc, st, err := openIssuer(ctx, issueKeyFile)
		if err != nil {
			return err
		}
		defer st.Close()

		d := issuer.Draft{
			Title:       issueTitle,
			Description: issueDescription,
			VisualConfig: mint.VisualConfig{
				Effect: mint.Effect(issueEffect),
				Color:  issueColor,
				Image:  issueImage,
			},
			Units: issueUnits,
		}
		if issueExpires != "" {
			e, err := mint.ParseExpiry(issueExpires)
			if err != nil {
				return err
			}
			d.ExpiresAt = e
		}

		m, err := svc.Issue(ctx, d)
		if err != nil {
			return err
		}
		carrier, err := svc.Carrier(ctx, m.ID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, carrier)
		fmt.Fprintf(cmd.ErrOrStderr(), "\n🪙 Mint Issued:\n")
		printMint(cmd.ErrOrStderr(), m)
		return nil
	},
}

var mintListCmd = &cobra.Command{
	Use:   "list",
	Short: "List issued mints",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		svc, st, err := openIssuer(ctx, issueKeyFile)
		if err != nil {
			return err
		}
		defer st.Close()

		mints, err := svc.List(ctx)
		if err != nil {
			return err
		}
		if len(mints) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No mints issued yet.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tUNITS\tSTATUS\tEXPIRES\tCREATED")
		for _, m := range mints {
			fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\t%s%s\t%s\n",
				m.ID, truncate(m.Title, 24), m.UsedUnits, m.TotalUnits, m.Status,
				m.ExpiresAt, expiredSuffix(m.ExpiresAt),
				time.UnixMilli(m.CreatedAt).Format("2006-01-02"),
			)
		}
		return w.Flush()
	},
}

var mintCarrierCmd = &cobra.Command{
	Use:   "carrier <id>",
	Short: "Print the carrier URL of an issued mint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, st, err := openIssuer(ctx, issueKeyFile)
		if err != nil {
			return err
		}
		defer st.Close()

		carrier, err := svc.Carrier(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), carrier)
		return nil
	},
}

var mintRedeemCmd = &cobra.Command{
	Use:   "redeem <id>",
	Short: "Consume units of an issued mint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, st, err := openIssuer(ctx, issueKeyFile)
		if err != nil {
			return err
		}
		defer st.Close()

		m, err := svc.Redeem(ctx, args[0], redeemUnits)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✅ Redeemed %d unit(s), %d left\n", redeemUnits, m.RemainingUnits())
		if m.Status == mint.StatusRedeemed {
			fmt.Fprintln(out, "🔒 Mint is now fully redeemed")
		}
		return nil
	},
}

var mintCloseCmd = &cobra.Command{
	Use:   "close <id>",
	Short: "Mark an issued mint redeemed without consuming units",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, st, err := openIssuer(ctx, issueKeyFile)
		if err != nil {
			return err
		}
		defer st.Close()

		if _, err := svc.Close(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "🔒 Mint %s closed\n", args[0])
		return nil
	},
}

var mintDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a redeemed or expired mint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, st, err := openIssuer(ctx, issueKeyFile)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := svc.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "🗑️  Mint %s deleted\n", args[0])
		return nil
	},
}

var mintCheckCmd = &cobra.Command{
	Use:   "check <id>",
	Short: "Re-verify the signature of an issued mint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, st, err := openIssuer(ctx, issueKeyFile)
		if err != nil {
			return err
		}
		defer st.Close()

		ok, err := svc.Revalidate(ctx, args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("❌ signature of %s does not match its contents", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Signature of %s is valid\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mintCmd)
	mintCmd.AddCommand(mintIssueCmd, mintListCmd, mintCarrierCmd, mintRedeemCmd, mintCloseCmd, mintDeleteCmd, mintCheckCmd)

	mintCmd.PersistentFlags().StringVar(&issueKeyFile, "key", "", "Issuer private key JWK (default: issuer.key_file)")

	mintIssueCmd.Flags().StringVar(&issueTitle, "title", "", "Mint title")
	mintIssueCmd.Flags().StringVar(&issueDescription, "desc", "", "Mint description")
	mintIssueCmd.Flags().StringVar(&issueEffect, "effect", string(mint.EffectPlastic), "Card finish: plastic, metalized, holographic, mirror")
	mintIssueCmd.Flags().StringVar(&issueColor, "color", "#222222", "Card color")
	mintIssueCmd.Flags().StringVar(&issueImage, "image", "", "Optional artwork reference")
	mintIssueCmd.Flags().IntVar(&issueUnits, "units", 1, "Number of redeemable units")
	mintIssueCmd.Flags().StringVar(&issueExpires, "expires", "", "Expiry month as YYYY-MM (default: issuer.validity_months from now)")
	_ = mintIssueCmd.MarkFlagRequired("title")

	mintRedeemCmd.Flags().IntVar(&redeemUnits, "units", 1, "Units to consume")
}
