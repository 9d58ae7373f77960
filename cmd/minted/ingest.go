package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/minted/minted-core/internal/logging"
	"github.com/minted/minted-core/pkg/ingest"
	"github.com/minted/minted-core/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
)

var (
	ingestConcurrency int
	ingestMetrics     bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [carrier|json]...",
	Short: "Verify scanned mints and add them to your collection",
	Long: `Run each scanned mint through the ingest pipeline: decode, structural
check, signature verification, duplicate check, then store. With no
arguments, inputs are read from stdin, one per line.`,
	Example: `  minted ingest "https://minted.app/m?m=eyJ4IjoyLC..."

  # Many at once
  cat scans.txt | minted ingest --concurrency 8`,
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs := args
		if len(inputs) == 0 {
			var err error
			if inputs, err = readLines(cmd.InOrStdin()); err != nil {
				return err
			}
		}
		if len(inputs) == 0 {
			return fmt.Errorf("no input: pass carriers as arguments or on stdin")
		}

		ctx := cmd.Context()
		st, err := openStore(ctx, store.NamespaceCollection)
		if err != nil {
			return err
		}
		defer st.Close()

		c, err := newCodec()
		if err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		p := ingest.New(st,
			ingest.WithCodec(c),
			ingest.WithLogger(logging.Named("ingest")),
			ingest.WithMetrics(ingest.NewMetrics(reg)),
		)

		concurrency := ingestConcurrency
		if concurrency < 1 {
			concurrency = cfg.Ingest.Concurrency
		}
		results := p.IngestAll(ctx, inputs, concurrency)

		out := cmd.OutOrStdout()
		rejected := 0
		for _, r := range results {
			switch {
			case r.Accepted:
				fmt.Fprintf(out, "✅ %s  %s %q\n", r, r.Mint.ID, r.Mint.Title)
			case r.Mint != nil:
				rejected++
				fmt.Fprintf(out, "❌ %s  %s\n", r, r.Mint.ID)
			default:
				rejected++
				fmt.Fprintf(out, "❌ %s\n", r)
			}
		}

		if ingestMetrics {
			if err := writeMetrics(out, reg); err != nil {
				return err
			}
		}

		if rejected > 0 {
			return fmt.Errorf("%d of %d mints rejected", rejected, len(results))
		}
		return nil
	},
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return lines, nil
}

// writeMetrics dumps the registry in the Prometheus text format.
func writeMetrics(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	fmt.Fprintln(w)
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().IntVar(&ingestConcurrency, "concurrency", 0, "Parallel ingests (default: ingest.concurrency)")
	ingestCmd.Flags().BoolVar(&ingestMetrics, "metrics", false, "Print ingest metrics after the run")
}
