package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minted/minted-core/internal/logging"
	"github.com/minted/minted-core/internal/storage"
	"github.com/minted/minted-core/pkg/codec"
	"github.com/minted/minted-core/pkg/crypto"
	"github.com/minted/minted-core/pkg/did"
	"github.com/minted/minted-core/pkg/issuer"
	"github.com/minted/minted-core/pkg/mint"
	"github.com/minted/minted-core/pkg/store"
	"go.uber.org/zap"
)

func openStore(ctx context.Context, namespace string) (store.Store, error) {
	st, err := storage.Open(ctx, cfg.Storage, namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", namespace, err)
	}
	return st, nil
}

func newCodec() (*codec.Codec, error) {
	c, err := codec.New(cfg.Codec.BaseURL)
	if err != nil {
		return nil, err
	}
	logging.L().Debug("codec ready", logging.Component("codec"), zap.String("base_url", c.BaseURL()))
	return c, nil
}

// openIssuer loads the issuer key and store. The caller closes the store.
func openIssuer(ctx context.Context, keyPath string) (*issuer.Service, store.Store, error) {
	if keyPath == "" {
		keyPath = cfg.Issuer.KeyFile
	}
	kp, err := crypto.LoadKeyPair(keyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load issuer key (run 'minted key gen' first): %w", err)
	}

	c, err := newCodec()
	if err != nil {
		return nil, nil, err
	}
	st, err := openStore(ctx, store.NamespaceIssuer)
	if err != nil {
		return nil, nil, err
	}

	svc := issuer.New(kp, st,
		issuer.WithCodec(c),
		issuer.WithValidity(cfg.Issuer.ValidityMonths),
		issuer.WithLogger(logging.Named("issuer")),
	)
	return svc, st, nil
}

// printMint writes a human-readable summary of m.
func printMint(w io.Writer, m mint.Mint) {
	b := m.Common()
	fmt.Fprintf(w, "   ID: %s\n", b.ID)
	fmt.Fprintf(w, "   Title: %s\n", b.Title)
	if b.Description != "" {
		fmt.Fprintf(w, "   Description: %s\n", b.Description)
	}
	fmt.Fprintf(w, "   Look: %s %s\n", b.VisualConfig.Effect, b.VisualConfig.Color)
	if issuerDID := crypto.IssuerDID(m); issuerDID != "" {
		fmt.Fprintf(w, "   Issuer: %s\n", did.Short(issuerDID))
	}
	fmt.Fprintf(w, "   Expires: %s%s\n", b.ExpiresAt, expiredSuffix(b.ExpiresAt))

	switch v := m.(type) {
	case *mint.IssuerMint:
		fmt.Fprintf(w, "   Units: %d/%d used\n", v.UsedUnits, v.TotalUnits)
		fmt.Fprintf(w, "   Status: %s\n", v.Status)
	case *mint.ReceivedMint:
		fmt.Fprintf(w, "   Status: %s\n", v.Status)
	}
}

func expiredSuffix(e mint.Expiry) string {
	if mint.IsExpired(e) {
		return " (expired)"
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
