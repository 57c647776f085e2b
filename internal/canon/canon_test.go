package canon_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/detcore/detcore/internal/canon"
)

func TestCanonicalUnorderedMapsMatch(t *testing.T) {
	a := map[string]any{"b": 2.0, "a": 1.0}
	b := map[string]any{"a": 1.0, "b": 2.0}

	canonA, err := canon.Canonical(a)
	require.NoError(t, err)
	canonB, err := canon.Canonical(b)
	require.NoError(t, err)

	assert.Equal(t, canonA, canonB)
	assert.Equal(t, `{"a":1,"b":2}`, string(canonA))

	fpA, err := canon.Fingerprint(a)
	require.NoError(t, err)
	fpB, err := canon.Fingerprint(b)
	require.NoError(t, err)
	assert.Equal(t, fpA, fpB)
}

func TestCanonicalIdempotent(t *testing.T) {
	v := map[string]any{
		"nested": map[string]any{"z": 1.0, "a": []any{1.0, 2.0, "x"}},
		"n":      3.0,
	}
	first, err := canon.Canonical(v)
	require.NoError(t, err)

	var reparsed any
	require.NoError(t, unmarshalInto(first, &reparsed))

	second, err := canon.Canonical(reparsed)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCanonicalRejectsNonFinite(t *testing.T) {
	_, err := canon.Canonical(map[string]any{"x": math.NaN()})
	require.Error(t, err)
	var cErr *canon.Error
	require.ErrorAs(t, err, &cErr)

	_, err = canon.Canonical(map[string]any{"x": math.Inf(1)})
	require.Error(t, err)
}

func TestCanonicalFloatShortestRoundTrip(t *testing.T) {
	out, err := canon.Canonical(map[string]any{"x": 0.1})
	require.NoError(t, err)
	assert.Equal(t, `{"x":0.1}`, string(out))
}

func TestCanonicalNormalizesLineEndings(t *testing.T) {
	out, err := canon.Canonical("a\r\nb\rc")
	require.NoError(t, err)
	assert.Equal(t, `"a\nb\nc"`, string(out))
}

func TestCanonicalBlobRefHashesNotEmbeds(t *testing.T) {
	out, err := canon.Canonical(map[string]any{"blob": canon.BlobRef{Bytes: []byte("hello")}})
	require.NoError(t, err)
	assert.Contains(t, string(out), "blake3:")
	assert.NotContains(t, string(out), "hello")
}

func TestFingerprintDiffersOnContent(t *testing.T) {
	fp1, err := canon.Fingerprint(map[string]any{"a": 1.0})
	require.NoError(t, err)
	fp2, err := canon.Fingerprint(map[string]any{"a": 2.0})
	require.NoError(t, err)
	assert.NotEqual(t, fp1, fp2)
}

func unmarshalInto(b []byte, v any) error {
	return json.Unmarshal(b, v)
}
