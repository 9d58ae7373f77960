// Package issuer creates, signs and manages the mints an issuer hands out.
package issuer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minted/minted-core/internal/logging"
	"github.com/minted/minted-core/pkg/codec"
	"github.com/minted/minted-core/pkg/crypto"
	"github.com/minted/minted-core/pkg/mint"
	"github.com/minted/minted-core/pkg/store"
	"go.uber.org/zap"
)

// DefaultValidityMonths is used when a draft has no expiry.
const DefaultValidityMonths = 12

// ErrInvalidDraft is wrapped by every draft validation failure.
var ErrInvalidDraft = errors.New("invalid mint draft")

// Draft holds the issuer-chosen fields of a new mint.
type Draft struct {
	Title        string
	Description  string
	VisualConfig mint.VisualConfig

	// Units is the redemption capacity. It must be positive.
	Units int

	// ExpiresAt defaults to the service validity from now.
	ExpiresAt mint.Expiry
}

// Service issues mints signed with one key pair and keeps them in a store.
type Service struct {
	keys     *crypto.KeyPair
	store    store.Store
	codec    *codec.Codec
	logger   *zap.Logger
	validity int
	now      func() time.Time

	// mu serializes read-modify-write updates of stored mints.
	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithCodec sets the codec used to build carriers.
func WithCodec(c *codec.Codec) Option {
	return func(s *Service) { s.codec = c }
}

// WithValidity sets the default validity in months.
func WithValidity(months int) Option {
	return func(s *Service) { s.validity = months }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates an issuer service.
func New(keys *crypto.KeyPair, st store.Store, opts ...Option) *Service {
	s := &Service{
		keys:     keys,
		store:    st,
		logger:   zap.NewNop(),
		validity: DefaultValidityMonths,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.codec == nil {
		s.codec, _ = codec.New("")
	}
	if s.validity < 1 {
		s.validity = DefaultValidityMonths
	}
	return s
}

// DID returns the issuer's did:key.
func (s *Service) DID() string {
	return s.keys.IssuerDID()
}

// Issue creates, signs and stores a new mint.
func (s *Service) Issue(ctx context.Context, d Draft) (*mint.IssuerMint, error) {
	now := s.now()
	if err := s.normalize(&d, now); err != nil {
		return nil, err
	}

	m := &mint.IssuerMint{
		Base: mint.Base{
			SchemaVersion:   mint.SchemaVersion,
			ID:              uuid.NewString(),
			Title:           d.Title,
			Description:     d.Description,
			VisualConfig:    d.VisualConfig,
			IssuerPublicKey: s.keys.PublicJWK(),
			CreatedAt:       now.UnixMilli(),
			ExpiresAt:       d.ExpiresAt,
		},
		Status:     mint.StatusActive,
		TotalUnits: d.Units,
	}

	if err := crypto.SignMint(m, s.keys.PrivateKey); err != nil {
		return nil, err
	}
	if err := s.store.Add(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to store mint: %w", err)
	}

	s.logger.Info("mint issued",
		logging.MintID(m.ID),
		logging.IssuerDID(s.DID()),
		logging.Units(m.TotalUnits),
	)
	return m, nil
}

func (s *Service) normalize(d *Draft, now time.Time) error {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidDraft)
	}

	if d.VisualConfig.Effect == "" {
		d.VisualConfig.Effect = mint.EffectPlastic
	}
	if !d.VisualConfig.Effect.Valid() {
		return fmt.Errorf("%w: unknown effect %q", ErrInvalidDraft, d.VisualConfig.Effect)
	}
	if d.VisualConfig.Color == "" {
		return fmt.Errorf("%w: color is required", ErrInvalidDraft)
	}

	if d.Units <= 0 {
		return fmt.Errorf("%w: %w", ErrInvalidDraft, mint.ErrInvalidUnits)
	}

	if d.ExpiresAt.IsZero() {
		d.ExpiresAt = mint.ExpiryAfter(now, s.validity)
	}
	if mint.IsExpiredAt(d.ExpiresAt, now) {
		return fmt.Errorf("%w: expiry %s is in the past", ErrInvalidDraft, d.ExpiresAt)
	}
	return nil
}

// Get returns a stored issuer mint.
func (s *Service) Get(ctx context.Context, id string) (*mint.IssuerMint, error) {
	m, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	issued, ok := m.(*mint.IssuerMint)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s", store.ErrWrongKind, id, m.Kind())
	}
	return issued, nil
}

// List returns every stored issuer mint, oldest first.
func (s *Service) List(ctx context.Context) ([]*mint.IssuerMint, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*mint.IssuerMint, 0, len(all))
	for _, m := range all {
		if issued, ok := m.(*mint.IssuerMint); ok {
			out = append(out, issued)
		}
	}
	return out, nil
}

// Carrier returns the transport URL for a stored mint.
func (s *Service) Carrier(ctx context.Context, id string) (string, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return s.codec.Encode(m)
}

// Redeem consumes units of a stored mint and saves the new counters.
func (s *Service) Redeem(ctx context.Context, id string, units int) (*mint.IssuerMint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := m.Redeem(units, s.now()); err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save mint: %w", err)
	}

	s.logger.Info("mint redeemed",
		logging.MintID(m.ID),
		logging.Units(units),
		zap.Int("remaining", m.RemainingUnits()),
		zap.String("status", string(m.Status)),
	)
	return m, nil
}

// Close marks a stored mint redeemed without consuming units.
func (s *Service) Close(ctx context.Context, id string) (*mint.IssuerMint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := m.MarkRedeemed(); err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save mint: %w", err)
	}
	return m, nil
}

// Delete removes a mint that is redeemed or expired.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !mint.CanDeleteAt(m, mint.ContextIssuer, s.now()) {
		return mint.ErrNotDeletable
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("mint deleted", logging.MintID(id))
	return nil
}

// Revalidate re-verifies the signature of a stored mint.
func (s *Service) Revalidate(ctx context.Context, id string) (bool, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return crypto.VerifyMint(m)
}
