package pagination

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kestrelworks/skimmer/pkg/crypto"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	codec, err := NewCodec(testSecret, time.Hour)
	require.NoError(t, err)
	return codec
}

func TestNewCodecRequiresSecret(t *testing.T) {
	_, err := NewCodec("  ", time.Hour)
	require.Error(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Encode(Payload{
		SortBy:    "published_at",
		SortOrder: SortDesc,
		Values:    map[string]any{"published_at": "2025-01-15T00:00:00Z", "id": "a1"},
		Limit:     20,
		Filters:   map[string]string{"source_id": "hn-frontpage"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)
	// token must be URL-safe without padding
	require.NotContains(t, token, "=")
	require.NotContains(t, token, "+")
	require.NotContains(t, token, "/")

	decoded := codec.Decode(token)
	require.NotNil(t, decoded)
	require.Equal(t, "published_at", decoded.SortBy)
	require.Equal(t, SortDesc, decoded.SortOrder)
	require.Equal(t, "2025-01-15T00:00:00Z", decoded.Values["published_at"])
	require.Equal(t, "a1", decoded.Values["id"])
	require.Equal(t, 20, decoded.Limit)
	require.Equal(t, map[string]string{"source_id": "hn-frontpage"}, decoded.Filters)
	require.Equal(t, CursorVersion, decoded.Version)
}

func TestEncodeRejectsIncompletePayloads(t *testing.T) {
	codec := newTestCodec(t)

	cases := []struct {
		name  string
		input Payload
	}{
		{"missing sort by", Payload{SortOrder: SortDesc, Values: map[string]any{"id": "a"}, Limit: 10}},
		{"bad sort order", Payload{SortBy: "score", SortOrder: "sideways", Values: map[string]any{"score": 1, "id": "a"}, Limit: 10}},
		{"zero limit", Payload{SortBy: "score", SortOrder: SortAsc, Values: map[string]any{"score": 1, "id": "a"}}},
		{"missing sort value", Payload{SortBy: "score", SortOrder: SortAsc, Values: map[string]any{"id": "a"}, Limit: 10}},
		{"missing tiebreak id", Payload{SortBy: "score", SortOrder: SortAsc, Values: map[string]any{"score": 1}, Limit: 10}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := codec.Encode(tc.input)
			require.Error(t, err)
		})
	}
}

func TestDecodeFailsClosedOnGarbage(t *testing.T) {
	codec := newTestCodec(t)

	require.Nil(t, codec.Decode(""))
	require.Nil(t, codec.Decode("not base64 at all!!"))
	require.Nil(t, codec.Decode(base64.RawURLEncoding.EncodeToString([]byte("noseparator"))))
	require.Nil(t, codec.Decode(base64.RawURLEncoding.EncodeToString([]byte("short.sig"))))
}

func TestDecodeDetectsTampering(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Encode(Payload{
		SortBy:    "score",
		SortOrder: SortDesc,
		Values:    map[string]any{"score": 42.5, "id": "a1"},
		Limit:     10,
	})
	require.NoError(t, err)

	// flipping any single character must invalidate the signature
	for i := 0; i < len(token); i++ {
		flipped := []byte(token)
		if flipped[i] == 'A' {
			flipped[i] = 'B'
		} else {
			flipped[i] = 'A'
		}
		require.Nil(t, codec.Decode(string(flipped)), "tampered index %d decoded", i)
	}
}

func TestDecodeRejectsNonCanonicalTokenSpelling(t *testing.T) {
	codec := newTestCodec(t)

	// pad the filter value until the raw token length leaves trailing bits in
	// the final base64 symbol
	var token string
	var raw []byte
	for pad := 0; pad < 3; pad++ {
		candidate, err := codec.Encode(Payload{
			SortBy:    "score",
			SortOrder: SortDesc,
			Values:    map[string]any{"score": 1.5, "id": "a1"},
			Limit:     10,
			Filters:   map[string]string{"f": strings.Repeat("x", pad)},
		})
		require.NoError(t, err)

		decoded, err := base64.RawURLEncoding.DecodeString(candidate)
		require.NoError(t, err)
		if len(decoded)%3 != 0 {
			token, raw = candidate, decoded
			break
		}
	}
	require.NotEmpty(t, token)
	require.NotNil(t, codec.Decode(token))

	// flipping an unused trailing bit yields a different spelling of the same
	// bytes; a lenient decoder accepts it, the codec must not
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	idx := strings.IndexByte(alphabet, token[len(token)-1])
	require.GreaterOrEqual(t, idx, 0)
	mutated := token[:len(token)-1] + string(alphabet[idx^1])

	lenient, err := base64.RawURLEncoding.DecodeString(mutated)
	require.NoError(t, err)
	require.Equal(t, raw, lenient)

	require.Nil(t, codec.Decode(mutated))
}

func TestDecodeRejectsWrongSecret(t *testing.T) {
	codec := newTestCodec(t)
	other, err := NewCodec("another-secret-entirely", time.Hour)
	require.NoError(t, err)

	token, err := codec.Encode(Payload{
		SortBy:    "score",
		SortOrder: SortAsc,
		Values:    map[string]any{"score": 1, "id": "a"},
		Limit:     5,
	})
	require.NoError(t, err)

	require.NotNil(t, codec.Decode(token))
	require.Nil(t, other.Decode(token))
}

func TestDecodeExpiryBoundaryIsInclusive(t *testing.T) {
	codec := newTestCodec(t)

	minted := time.Now()
	codec.now = func() time.Time { return minted }

	token, err := codec.Encode(Payload{
		SortBy:    "published_at",
		SortOrder: SortDesc,
		Values:    map[string]any{"published_at": "2025-01-15T00:00:00Z", "id": "a1"},
		Limit:     20,
	})
	require.NoError(t, err)

	// exactly maxAge old: still valid
	codec.now = func() time.Time { return minted.Add(time.Hour) }
	require.NotNil(t, codec.Decode(token))

	// one millisecond past maxAge: rejected
	codec.now = func() time.Time { return minted.Add(time.Hour + time.Millisecond) }
	require.Nil(t, codec.Decode(token))
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	codec := newTestCodec(t)

	payload := Payload{
		SortBy:    "score",
		SortOrder: SortDesc,
		Values:    map[string]any{"score": 1, "id": "a"},
		Limit:     10,
		Version:   CursorVersion + 1,
		Timestamp: time.Now().UnixMilli(),
	}
	serialized, err := json.Marshal(payload)
	require.NoError(t, err)

	// correctly signed token carrying a future version must still be rejected
	signature := crypto.Sign(serialized, []byte(testSecret), 16)
	token := base64.RawURLEncoding.EncodeToString([]byte(signature + "." + string(serialized)))
	require.Nil(t, codec.Decode(token))
}

func TestDecodeRejectsPayloadMissingTiebreak(t *testing.T) {
	codec := newTestCodec(t)

	payload := Payload{
		SortBy:    "score",
		SortOrder: SortDesc,
		Values:    map[string]any{"score": 1},
		Limit:     10,
		Version:   CursorVersion,
		Timestamp: time.Now().UnixMilli(),
	}
	serialized, err := json.Marshal(payload)
	require.NoError(t, err)

	signature := crypto.Sign(serialized, []byte(testSecret), 16)
	token := base64.RawURLEncoding.EncodeToString([]byte(signature + "." + string(serialized)))
	require.Nil(t, codec.Decode(token))
}

func TestValidateSortCondition(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Encode(Payload{
		SortBy:    "published_at",
		SortOrder: SortDesc,
		Values:    map[string]any{"published_at": "2025-01-15T00:00:00Z", "id": "a1"},
		Limit:     20,
	})
	require.NoError(t, err)

	decoded := codec.Decode(token)
	require.NotNil(t, decoded)

	require.True(t, codec.ValidateSortCondition(decoded, "published_at", SortDesc))
	require.False(t, codec.ValidateSortCondition(decoded, "published_at", SortAsc))
	require.False(t, codec.ValidateSortCondition(decoded, "score", SortDesc))
	require.False(t, codec.ValidateSortCondition(nil, "published_at", SortDesc))
}

func TestValidateFilters(t *testing.T) {
	codec := newTestCodec(t)

	decoded := &Payload{Filters: map[string]string{"tag": "go", "source_id": "hn"}}

	require.True(t, codec.ValidateFilters(decoded, map[string]string{"source_id": "hn", "tag": "go"}))
	require.False(t, codec.ValidateFilters(decoded, map[string]string{"tag": "go"}))
	require.False(t, codec.ValidateFilters(decoded, map[string]string{"tag": "rust", "source_id": "hn"}))
	require.False(t, codec.ValidateFilters(decoded, nil))

	empty := &Payload{}
	require.True(t, codec.ValidateFilters(empty, nil))
	require.True(t, codec.ValidateFilters(empty, map[string]string{}))
}
