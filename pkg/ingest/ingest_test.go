package ingest_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/minted/minted-core/pkg/codec"
	"github.com/minted/minted-core/pkg/crypto"
	"github.com/minted/minted-core/pkg/ingest"
	"github.com/minted/minted-core/pkg/mint"
	"github.com/minted/minted-core/pkg/store"
	"github.com/minted/minted-core/pkg/store/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// coffee returns a signed single-unit mint expiring next year.
func coffee(t *testing.T) *mint.IssuerMint {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	now := time.Now()
	m := &mint.IssuerMint{
		Base: mint.Base{
			SchemaVersion:   mint.SchemaVersion,
			ID:              "7d3c0a52-1f4e-4b6a-9c1d-2e8f7a6b5c4d",
			Title:           "Coffee",
			Description:     "One free coffee",
			VisualConfig:    mint.VisualConfig{Effect: mint.EffectMetalized, Color: "#aa5500"},
			IssuerPublicKey: kp.PublicJWK(),
			CreatedAt:       now.UnixMilli(),
			ExpiresAt:       mint.NewExpiry(now.Year()+1, now.Month()),
		},
		Status:     mint.StatusActive,
		TotalUnits: 1,
	}
	require.NoError(t, crypto.SignMint(m, kp.PrivateKey))
	return m
}

func encode(t *testing.T, m mint.Mint) string {
	t.Helper()
	c, err := codec.New("")
	require.NoError(t, err)
	carrier, err := c.Encode(m)
	require.NoError(t, err)
	return carrier
}

// rewriteCarrier applies edit to the compact JSON inside a carrier.
func rewriteCarrier(t *testing.T, carrier string, edit func(string) string) string {
	t.Helper()
	u, err := url.Parse(carrier)
	require.NoError(t, err)
	data, err := base64.StdEncoding.DecodeString(u.Query().Get(codec.Param))
	require.NoError(t, err)

	edited := edit(string(data))
	require.NotEqual(t, string(data), edited, "edit must change the payload")

	q := url.Values{}
	q.Set(codec.Param, base64.StdEncoding.EncodeToString([]byte(edited)))
	u.RawQuery = q.Encode()
	return u.String()
}

func TestIngest_CoffeeScenario(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	p := ingest.New(s)

	issued := coffee(t)
	carrier := encode(t, issued)

	c, err := codec.New("")
	require.NoError(t, err)
	decoded, err := c.Decode(carrier)
	require.NoError(t, err)
	ok, err := crypto.VerifyMint(decoded)
	require.NoError(t, err)
	assert.True(t, ok)

	first := p.Ingest(ctx, carrier)
	require.True(t, first.Accepted, first.String())
	assert.Equal(t, "Accepted", first.String())
	assert.Equal(t, codec.FormCarrier, first.Form)
	require.NotNil(t, first.Mint)
	assert.Equal(t, mint.StatusActive, first.Mint.Status)

	second := p.Ingest(ctx, carrier)
	assert.False(t, second.Accepted)
	assert.Equal(t, ingest.ReasonDuplicate, second.Reason)
	assert.ErrorIs(t, second.Err, mint.ErrDuplicate)
	assert.True(t, strings.HasPrefix(second.String(), "Rejected(duplicate)"))

	stored, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, mint.KindReceived, stored[0].Kind())

	flipped := rewriteCarrier(t, carrier, func(s string) string {
		return strings.Replace(s, `"l":"#aa5500"`, `"l":"#aa5501"`, 1)
	})
	tampered := ingest.New(memory.New()).Ingest(ctx, flipped)
	assert.False(t, tampered.Accepted)
	assert.Equal(t, ingest.ReasonInvalidSignature, tampered.Reason)
	assert.ErrorIs(t, tampered.Err, mint.ErrSignatureInvalid)
}

func TestIngest_StoresIssuerKeyDerivedFromKeyMaterial(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	issued := coffee(t)
	kid := issued.IssuerPublicKey.KeyID
	relabeled := rewriteCarrier(t, encode(t, issued), func(payload string) string {
		payload = strings.Replace(payload, `"kid":"`+kid+`"`, `"kid":"did:key:zEvilIssuer"`, 1)
		return strings.Replace(payload, `"use":"sig"`, `"use":"enc"`, 1)
	})

	r := ingest.New(s).Ingest(ctx, relabeled)
	require.True(t, r.Accepted, r.String())
	assert.Equal(t, kid, r.Mint.IssuerPublicKey.KeyID)

	stored, err := s.Get(ctx, issued.ID)
	require.NoError(t, err)
	key := stored.Common().IssuerPublicKey
	require.NotNil(t, key)
	assert.Equal(t, kid, key.KeyID)
	assert.Equal(t, "sig", key.Use)
	assert.Equal(t, "EdDSA", key.Algorithm)
	assert.Equal(t, kid, crypto.IssuerDID(stored))

	ok, err := crypto.VerifyMint(stored)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIngest_MissingIDSameReasonInEveryForm(t *testing.T) {
	ctx := context.Background()
	issued := coffee(t)
	issued.ID = ""

	c, err := codec.New("")
	require.NoError(t, err)
	compact, err := c.EncodeCompact(issued)
	require.NoError(t, err)

	for _, input := range []string{string(compact), encode(t, issued)} {
		s := memory.New()
		r := ingest.New(s).Ingest(ctx, input)
		assert.Equal(t, ingest.ReasonInvalidStructure, r.Reason, r.String())
		assert.ErrorIs(t, r.Err, mint.ErrStructure)
		assert.Contains(t, r.Err.Error(), "id")

		stored, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, stored)
	}
}

func TestIngest_AcceptsEveryForm(t *testing.T) {
	issued := coffee(t)
	c, err := codec.New("")
	require.NoError(t, err)
	compact, err := c.EncodeCompact(issued)
	require.NoError(t, err)
	long, err := json.Marshal(mint.ToReceived(issued))
	require.NoError(t, err)

	tests := []struct {
		name  string
		input string
		form  codec.Form
	}{
		{"carrier", encode(t, issued), codec.FormCarrier},
		{"compact", string(compact), codec.FormCompact},
		{"long", string(long), codec.FormLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ingest.New(memory.New()).Ingest(context.Background(), tt.input)
			require.True(t, r.Accepted, r.String())
			assert.Equal(t, tt.form, r.Form)
		})
	}
}

func TestIngest_Rejections(t *testing.T) {
	issued := coffee(t)
	carrier := encode(t, issued)

	other, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	otherKey, err := json.Marshal(other.PublicJWK())
	require.NoError(t, err)

	tests := []struct {
		name    string
		input   string
		reason  ingest.Reason
		wantErr error
	}{
		{
			name:    "garbage",
			input:   "hello",
			reason:  ingest.ReasonStructural,
			wantErr: mint.ErrDecode,
		},
		{
			name:    "carrier without payload",
			input:   codec.DefaultBaseURL + "?x=1",
			reason:  ingest.ReasonStructural,
			wantErr: mint.ErrDecode,
		},
		{
			name: "missing signature",
			input: rewriteCarrier(t, carrier, func(s string) string {
				return strings.Replace(s, `"s":"`+issued.Signature+`"`, `"s":""`, 1)
			}),
			reason:  ingest.ReasonInvalidStructure,
			wantErr: mint.ErrStructure,
		},
		{
			name: "missing id",
			input: rewriteCarrier(t, carrier, func(s string) string {
				return strings.Replace(s, `"i":"`+issued.ID+`"`, `"i":""`, 1)
			}),
			reason:  ingest.ReasonInvalidStructure,
			wantErr: mint.ErrStructure,
		},
		{
			name: "unsupported schema",
			input: rewriteCarrier(t, carrier, func(s string) string {
				return strings.Replace(s, `"x":2`, `"x":1`, 1)
			}),
			reason:  ingest.ReasonInvalidStructure,
			wantErr: mint.ErrStructure,
		},
		{
			name: "title changed",
			input: rewriteCarrier(t, carrier, func(s string) string {
				return strings.Replace(s, `"t":"Coffee"`, `"t":"Coffees"`, 1)
			}),
			reason:  ingest.ReasonInvalidSignature,
			wantErr: mint.ErrSignatureInvalid,
		},
		{
			name: "issuer key swapped",
			input: rewriteCarrier(t, carrier, func(s string) string {
				var fields map[string]json.RawMessage
				require.NoError(t, json.Unmarshal([]byte(s), &fields))
				fields["k"] = otherKey
				out, err := json.Marshal(fields)
				require.NoError(t, err)
				return string(out)
			}),
			reason:  ingest.ReasonInvalidSignature,
			wantErr: mint.ErrSignatureInvalid,
		},
		{
			name: "signature not base64",
			input: rewriteCarrier(t, carrier, func(s string) string {
				return strings.Replace(s, `"s":"`+issued.Signature+`"`, `"s":"***"`, 1)
			}),
			reason:  ingest.ReasonInvalidSignature,
			wantErr: mint.ErrDecode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := memory.New()
			r := ingest.New(s).Ingest(context.Background(), tt.input)
			assert.False(t, r.Accepted)
			assert.Equal(t, tt.reason, r.Reason)
			assert.ErrorIs(t, r.Err, tt.wantErr)
			assert.NotEmpty(t, r.Message)

			// Nothing is written on any rejection path.
			stored, err := s.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, stored)
		})
	}
}

func TestIngest_UnitCountersAreNotSigned(t *testing.T) {
	issued := coffee(t)
	require.NoError(t, issued.Redeem(1, time.Now()))
	require.Equal(t, mint.StatusRedeemed, issued.Status)

	s := memory.New()
	r := ingest.New(s).Ingest(context.Background(), encode(t, issued))
	require.True(t, r.Accepted, r.String())

	got, err := s.Get(context.Background(), issued.ID)
	require.NoError(t, err)
	received, ok := got.(*mint.ReceivedMint)
	require.True(t, ok)
	assert.Equal(t, mint.StatusActive, received.Status)
}

func TestIngestAll_ConcurrentSameID(t *testing.T) {
	carrier := encode(t, coffee(t))
	raws := make([]string, 24)
	for i := range raws {
		raws[i] = carrier
	}

	s := memory.New()
	results := ingest.New(s).IngestAll(context.Background(), raws, 8)
	require.Len(t, results, len(raws))

	accepted := 0
	for _, r := range results {
		if r.Accepted {
			accepted++
			continue
		}
		assert.Equal(t, ingest.ReasonDuplicate, r.Reason)
	}
	assert.Equal(t, 1, accepted)

	stored, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestIngestAll_PreservesOrder(t *testing.T) {
	a, b := coffee(t), coffee(t)
	b.ID = "second"
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	b.IssuerPublicKey = kp.PublicJWK()
	require.NoError(t, crypto.SignMint(b, kp.PrivateKey))

	results := ingest.New(memory.New()).IngestAll(context.Background(), []string{encode(t, a), "junk", encode(t, b)}, 0)
	require.Len(t, results, 3)
	assert.Equal(t, a.ID, results[0].Mint.ID)
	assert.Equal(t, ingest.ReasonStructural, results[1].Reason)
	assert.Equal(t, "second", results[2].Mint.ID)
}

func TestIngest_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := ingest.New(memory.New()).Ingest(ctx, encode(t, coffee(t)))
	assert.Equal(t, ingest.ReasonStorage, r.Reason)
	assert.ErrorIs(t, r.Err, context.Canceled)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Get(ctx context.Context, id string) (mint.Mint, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(mint.Mint), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) Add(ctx context.Context, mt mint.Mint) error {
	return m.Called(ctx, mt).Error(0)
}

func (m *mockStore) Put(ctx context.Context, mt mint.Mint) error {
	return m.Called(ctx, mt).Error(0)
}

func (m *mockStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) List(ctx context.Context) ([]mint.Mint, error) {
	args := m.Called(ctx)
	return args.Get(0).([]mint.Mint), args.Error(1)
}

func (m *mockStore) Close() error { return nil }

func TestIngest_StoreFailures(t *testing.T) {
	issued := coffee(t)
	carrier := encode(t, issued)
	boom := errors.New("connection reset")

	t.Run("lookup fails", func(t *testing.T) {
		s := &mockStore{}
		s.On("Get", mock.Anything, issued.ID).Return(nil, boom)

		r := ingest.New(s).Ingest(context.Background(), carrier)
		assert.Equal(t, ingest.ReasonStorage, r.Reason)
		assert.ErrorIs(t, r.Err, boom)
		s.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
	})

	t.Run("write fails", func(t *testing.T) {
		s := &mockStore{}
		s.On("Get", mock.Anything, issued.ID).Return(nil, store.ErrNotFound)
		s.On("Add", mock.Anything, mock.Anything).Return(boom)

		r := ingest.New(s).Ingest(context.Background(), carrier)
		assert.Equal(t, ingest.ReasonStorage, r.Reason)
		assert.ErrorIs(t, r.Err, boom)
		s.AssertExpectations(t)
	})

	t.Run("lost race", func(t *testing.T) {
		s := &mockStore{}
		s.On("Get", mock.Anything, issued.ID).Return(nil, store.ErrNotFound)
		s.On("Add", mock.Anything, mock.MatchedBy(func(m mint.Mint) bool {
			return m.Kind() == mint.KindReceived && m.Common().ID == issued.ID
		})).Return(store.ErrAlreadyExists)

		r := ingest.New(s).Ingest(context.Background(), carrier)
		assert.Equal(t, ingest.ReasonDuplicate, r.Reason)
		s.AssertExpectations(t)
	})
}

func TestIngest_MetricsAndLogs(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := ingest.NewMetrics(reg)
	core, logs := observer.New(zapcore.InfoLevel)

	p := ingest.New(memory.New(), ingest.WithMetrics(metrics), ingest.WithLogger(zap.New(core)))
	carrier := encode(t, coffee(t))

	p.Ingest(context.Background(), carrier)
	p.Ingest(context.Background(), carrier)
	p.Ingest(context.Background(), "junk")

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Outcomes.WithLabelValues("accepted", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Outcomes.WithLabelValues("rejected", "duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Outcomes.WithLabelValues("rejected", "structural")))

	count, err := testutil.GatherAndCount(reg, "minted_ingest_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.Equal(t, 3, logs.Len())
	assert.Equal(t, "mint accepted", logs.All()[0].Message)
	rejected := logs.FilterMessage("mint rejected").All()
	require.Len(t, rejected, 2)
	assert.Equal(t, "duplicate", rejected[0].ContextMap()["reason"])
	assert.Equal(t, mint.ErrCodeDuplicate, rejected[0].ContextMap()["error_code"])
	assert.Equal(t, zapcore.WarnLevel, rejected[0].Level)
	assert.Equal(t, mint.ErrCodeDecode, rejected[1].ContextMap()["error_code"])
	assert.NotContains(t, logs.All()[0].ContextMap(), "error_code")
}

func TestCheckStructure(t *testing.T) {
	m := coffee(t)
	assert.NoError(t, ingest.CheckStructure(m))

	m.ID = " "
	m.Signature = ""
	m.IssuerPublicKey = nil
	err := ingest.CheckStructure(m)
	assert.ErrorIs(t, err, mint.ErrStructure)
	assert.Contains(t, err.Error(), "id, signature, issuerPublicKey")
}
