package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kestrelworks/skimmer/pkg/crypto"
	"github.com/kestrelworks/skimmer/pkg/logger"
	"github.com/kestrelworks/skimmer/pkg/metrics"
)

const (
	// CursorVersion is the current cursor wire-format version. A decoded
	// cursor carrying any other version is rejected outright; this constant
	// is the extension point for future format migrations.
	CursorVersion = 1

	// TiebreakKey names the unique identifier column used to disambiguate
	// rows sharing the same sort-field value.
	TiebreakKey = "id"

	// DefaultMaxAge bounds how long a minted cursor stays decodable.
	DefaultMaxAge = time.Hour

	signatureLength = 16
	separator       = "."
)

// Sort orders accepted by the codec.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Payload is the decoded content of a pagination token. Values always holds
// the sort field's boundary value plus the tiebreak identifier.
type Payload struct {
	SortBy    string            `json:"sortBy"`
	SortOrder string            `json:"sortOrder"`
	Values    map[string]any    `json:"values"`
	Limit     int               `json:"limit"`
	Filters   map[string]string `json:"filters,omitempty"`
	Version   int               `json:"version"`
	Timestamp int64             `json:"timestamp"`
}

// Codec encodes and decodes opaque, tamper-evident pagination cursors.
// Encode/Decode are pure and synchronous; the codec is safe for concurrent use.
type Codec struct {
	secret []byte
	maxAge time.Duration
	log    *zap.Logger
	now    func() time.Time
}

// NewCodec builds a cursor codec from the signing secret. maxAge <= 0 falls
// back to DefaultMaxAge.
func NewCodec(secret string, maxAge time.Duration) (*Codec, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("pagination: cursor secret is required")
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	return &Codec{
		secret: []byte(secret),
		maxAge: maxAge,
		log:    logger.WithModule("pagination"),
		now:    time.Now,
	}, nil
}

// Encode serializes the payload, signs it and returns a URL-safe opaque token.
// Version and timestamp are stamped by the codec; the caller must supply the
// sort field's boundary value and the tiebreak identifier in Values. Missing
// required fields are programmer errors and returned as such.
func (c *Codec) Encode(input Payload) (string, error) {
	if c == nil {
		return "", errors.New("pagination: codec not initialised")
	}
	if strings.TrimSpace(input.SortBy) == "" {
		return "", errors.New("pagination: sortBy is required")
	}
	if input.SortOrder != SortAsc && input.SortOrder != SortDesc {
		return "", errors.New("pagination: sortOrder must be asc or desc")
	}
	if input.Limit <= 0 {
		return "", errors.New("pagination: limit must be positive")
	}
	if _, ok := input.Values[input.SortBy]; !ok {
		return "", errors.New("pagination: values must include the sort field value")
	}
	if _, ok := input.Values[TiebreakKey]; !ok {
		return "", errors.New("pagination: values must include the tiebreak id")
	}

	input.Version = CursorVersion
	input.Timestamp = c.now().UnixMilli()

	serialized, err := json.Marshal(input)
	if err != nil {
		return "", err
	}

	signature := crypto.Sign(serialized, c.secret, signatureLength)
	token := signature + separator + string(serialized)
	return base64.RawURLEncoding.EncodeToString([]byte(token)), nil
}

// Decode reverses Encode. It fails closed: any malformed, tampered, stale or
// version-mismatched token yields nil and the caller treats the request as a
// first page. Rejection reasons are distinguishable in logs and metrics only.
func (c *Codec) Decode(token string) *Payload {
	if c == nil || strings.TrimSpace(token) == "" {
		return nil
	}

	raw, err := base64.RawURLEncoding.Strict().DecodeString(token)
	if err != nil {
		c.reject("format", zap.Error(err))
		return nil
	}

	// The signature is hex and never contains the separator, so the first
	// occurrence always splits correctly even though the JSON payload may
	// contain dots.
	parts := strings.SplitN(string(raw), separator, 2)
	if len(parts) != 2 || len(parts[0]) != signatureLength {
		c.reject("format")
		return nil
	}
	signature, serialized := parts[0], []byte(parts[1])

	if !crypto.VerifySignature(serialized, c.secret, signature, signatureLength) {
		c.reject("signature")
		return nil
	}

	var payload Payload
	if err := json.Unmarshal(serialized, &payload); err != nil {
		c.reject("format", zap.Error(err))
		return nil
	}

	if payload.Version != CursorVersion {
		c.reject("version", zap.Int("got", payload.Version), zap.Int("want", CursorVersion))
		return nil
	}

	if _, ok := payload.Values[payload.SortBy]; !ok {
		c.reject("format", zap.String("missing", payload.SortBy))
		return nil
	}
	if _, ok := payload.Values[TiebreakKey]; !ok {
		c.reject("format", zap.String("missing", TiebreakKey))
		return nil
	}

	// Timestamps are stamped at millisecond precision, so the age is compared
	// in milliseconds too; a cursor aged exactly maxAge still decodes.
	ageMillis := c.now().UnixMilli() - payload.Timestamp
	if ageMillis > c.maxAge.Milliseconds() {
		c.reject("expired",
			zap.Duration("age", time.Duration(ageMillis)*time.Millisecond),
			zap.Duration("max_age", c.maxAge))
		return nil
	}

	return &payload
}

// ValidateSortCondition reports whether the cursor was minted under the same
// sort key and direction as the current request. A cursor from a differently
// sorted listing must never be used to build page boundaries.
func (c *Codec) ValidateSortCondition(p *Payload, sortBy, sortOrder string) bool {
	if p == nil {
		return false
	}
	return p.SortBy == sortBy && p.SortOrder == sortOrder
}

// ValidateFilters reports whether the filter set recorded in the cursor still
// matches the active one. Comparison is order-insensitive; nil and empty maps
// are equivalent.
func (c *Codec) ValidateFilters(p *Payload, filters map[string]string) bool {
	if p == nil {
		return false
	}
	if len(p.Filters) != len(filters) {
		return false
	}
	for key, value := range filters {
		if recorded, ok := p.Filters[key]; !ok || recorded != value {
			return false
		}
	}
	return true
}

func (c *Codec) reject(reason string, fields ...zap.Field) {
	metrics.CursorRejections.WithLabelValues(reason).Inc()
	fields = append(fields, zap.String("reason", reason))
	c.log.Warn("cursor rejected", fields...)
}
