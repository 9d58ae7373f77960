// Package ingest runs the collector-side intake of scanned mints:
// decode, structural check, signature verification, then an atomic
// insert-if-absent into the collection store. The store write is the only
// side effect and always comes last.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/minted/minted-core/internal/logging"
	"github.com/minted/minted-core/pkg/codec"
	"github.com/minted/minted-core/pkg/crypto"
	"github.com/minted/minted-core/pkg/mint"
	"github.com/minted/minted-core/pkg/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Reason classifies a rejection.
type Reason string

const (
	// ReasonStructural means the input could not be decoded.
	ReasonStructural Reason = "structural"

	// ReasonInvalidStructure means the decoded mint lacks an identity field
	// or uses an unsupported schema.
	ReasonInvalidStructure Reason = "invalid-structure"

	// ReasonInvalidSignature means the signature does not cover the fields.
	ReasonInvalidSignature Reason = "invalid-signature"

	// ReasonDuplicate means the id is already in the collection.
	ReasonDuplicate Reason = "duplicate"

	// ReasonStorage means the store failed for another reason.
	ReasonStorage Reason = "storage"
)

// Result is the terminal state of one ingest.
type Result struct {
	Accepted bool

	// Reason is empty when Accepted.
	Reason  Reason
	Message string

	// Form is the detected input encoding, zero if undetectable.
	Form codec.Form

	// Mint is the collector record. It is set once decoding succeeded,
	// even on later rejections, so callers can show what was scanned.
	Mint *mint.ReceivedMint

	// Err is the typed cause of a rejection.
	Err error
}

// String renders the result as Accepted or Rejected(reason): message.
func (r Result) String() string {
	if r.Accepted {
		return "Accepted"
	}
	return fmt.Sprintf("Rejected(%s): %s", r.Reason, r.Message)
}

// Pipeline ingests mints into a collection store. It is safe for concurrent use.
type Pipeline struct {
	store   store.Store
	codec   *codec.Codec
	logger  *zap.Logger
	metrics *Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithMetrics records outcomes in m.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithCodec sets the codec used to parse inputs.
func WithCodec(c *codec.Codec) Option {
	return func(p *Pipeline) { p.codec = c }
}

// New creates a pipeline writing to s.
func New(s store.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:  s,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.codec == nil {
		// The default base URL always parses.
		p.codec, _ = codec.New("")
	}
	return p
}

// Ingest processes one scanned input.
func (p *Pipeline) Ingest(ctx context.Context, raw string) Result {
	start := time.Now()
	r := p.ingest(ctx, raw)
	p.metrics.ObserveResult(r, time.Since(start))
	p.log(r, time.Since(start))
	return r
}

// IngestAll processes raws with at most concurrency ingests in flight.
// Results are returned in input order.
func (p *Pipeline) IngestAll(ctx context.Context, raws []string, concurrency int) []Result {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]Result, len(raws))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, raw := range raws {
		i, raw := i, raw
		g.Go(func() error {
			results[i] = p.Ingest(ctx, raw)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Pipeline) ingest(ctx context.Context, raw string) Result {
	decoded, form, err := p.codec.Parse(raw)
	if err != nil {
		return reject(ReasonStructural, "could not decode mint", err)
	}

	received := receivedView(decoded)
	withMint := func(r Result) Result {
		r.Form = form
		r.Mint = received
		return r
	}

	if err := CheckStructure(received); err != nil {
		return withMint(reject(ReasonInvalidStructure, "mint is incomplete", err))
	}

	ok, err := crypto.VerifyMint(received)
	switch {
	case errors.Is(err, mint.ErrDecode):
		return withMint(reject(ReasonInvalidSignature, "signature is malformed", err))
	case err != nil:
		return withMint(reject(ReasonInvalidStructure, "mint cannot be verified", err))
	case !ok:
		return withMint(reject(ReasonInvalidSignature, "signature does not match the mint contents",
			mint.NewError(mint.ErrCodeSignatureInvalid, "verification failed")))
	}

	// Only the key material is signed; kid, alg and use are rebuilt from it.
	pub, err := crypto.PublicKeyFromJWK(received.IssuerPublicKey)
	if err != nil {
		return withMint(reject(ReasonInvalidStructure, "mint cannot be verified", err))
	}
	received.IssuerPublicKey = crypto.PublicJWK(pub)

	if err := ctx.Err(); err != nil {
		return withMint(reject(ReasonStorage, "ingest canceled", err))
	}

	id := received.ID
	_, err = p.store.Get(ctx, id)
	switch {
	case err == nil:
		return withMint(duplicate(id))
	case !errors.Is(err, store.ErrNotFound):
		return withMint(reject(ReasonStorage, "collection lookup failed", err))
	}

	// Another ingest may have stored the id since Get; Add decides.
	if err := p.store.Add(ctx, received); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return withMint(duplicate(id))
		}
		return withMint(reject(ReasonStorage, "could not save mint", err))
	}

	return withMint(Result{Accepted: true})
}

// CheckStructure reports a StructuralError naming every missing identity field.
func CheckStructure(m mint.Mint) error {
	b := m.Common()

	var missing []string
	if strings.TrimSpace(b.ID) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(b.Signature) == "" {
		missing = append(missing, "signature")
	}
	if b.IssuerPublicKey == nil {
		missing = append(missing, "issuerPublicKey")
	}

	if len(missing) > 0 {
		return mint.NewError(mint.ErrCodeStructure, "missing "+strings.Join(missing, ", "))
	}
	return nil
}

// receivedView returns the collector record for a decoded mint. Issuer
// counters are dropped; status starts active since it is not signed.
func receivedView(m mint.Mint) *mint.ReceivedMint {
	switch v := m.(type) {
	case *mint.IssuerMint:
		return mint.ToReceived(v)
	case *mint.ReceivedMint:
		out := *v
		out.Status = mint.StatusActive
		return &out
	}
	return nil
}

func reject(reason Reason, message string, err error) Result {
	return Result{Reason: reason, Message: message, Err: err}
}

func duplicate(id string) Result {
	return reject(ReasonDuplicate, "mint is already in the collection",
		mint.NewError(mint.ErrCodeDuplicate, "id "+id+" already stored"))
}

func (p *Pipeline) log(r Result, d time.Duration) {
	fields := []zap.Field{logging.Op("ingest"), logging.Duration(d)}
	if r.Form != 0 {
		fields = append(fields, logging.Form(r.Form.String()))
	}
	if r.Mint != nil {
		fields = append(fields, logging.MintID(r.Mint.ID), logging.IssuerDID(crypto.IssuerDID(r.Mint)))
	}

	if code := mint.GetErrorCode(r.Err); code != "" {
		fields = append(fields, logging.ErrorCode(code))
	}

	switch {
	case r.Accepted:
		p.logger.Info("mint accepted", fields...)
	case r.Reason == ReasonStorage:
		p.logger.Error("mint rejected", append(fields, logging.Reason(string(r.Reason)), logging.Err(r.Err))...)
	default:
		p.logger.Warn("mint rejected", append(fields, logging.Reason(string(r.Reason)), logging.Err(r.Err))...)
	}
}
