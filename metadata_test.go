package stowgate_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/sagarc03/stowgate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVisibility(t *testing.T) {
	v, err := stowgate.ParseVisibility("public")
	require.NoError(t, err)
	assert.Equal(t, stowgate.VisibilityPublic, v)

	_, err = stowgate.ParseVisibility("Public")
	assert.ErrorIs(t, err, stowgate.ErrInvalidInput)

	_, err = stowgate.ParseVisibility("")
	assert.ErrorIs(t, err, stowgate.ErrInvalidInput)
}

func TestParseObjectType(t *testing.T) {
	ot, err := stowgate.ParseObjectType("text")
	require.NoError(t, err)
	assert.Equal(t, stowgate.ObjectTypeText, ot)

	_, err = stowgate.ParseObjectType("binary")
	assert.ErrorIs(t, err, stowgate.ErrInvalidInput)
}

func TestMetadata_IsPublic(t *testing.T) {
	assert.True(t, stowgate.Metadata{Visibility: "public"}.IsPublic())
	assert.False(t, stowgate.Metadata{Visibility: "private"}.IsPublic())
	assert.False(t, stowgate.Metadata{}.IsPublic(), "missing visibility is private")
	assert.False(t, stowgate.Metadata{Visibility: "PUBLIC"}.IsPublic(), "comparison is exact")
}

func TestMetadata_MapAndKeys(t *testing.T) {
	m := stowgate.Metadata{
		Visibility: stowgate.VisibilityPublic,
		Type:       stowgate.ObjectTypeText,
		Extra:      map[string]string{"x-store-owner": "alice"},
	}

	assert.Equal(t, map[string]string{
		"x-store-visibility": "public",
		"x-store-type":       "text",
		"x-store-owner":      "alice",
	}, m.Map())
	assert.Equal(t, []string{"x-store-owner", "x-store-type", "x-store-visibility"}, m.Keys())

	assert.Empty(t, stowgate.Metadata{}.Map())
}

func TestMetadataFromMap(t *testing.T) {
	m := stowgate.MetadataFromMap(map[string]string{
		"X-Store-Visibility":  "public",
		"x-store-type":        "weird",
		"X-Store-Owner":       "bob",
		"Content-Disposition": "inline",
	})

	assert.Equal(t, stowgate.VisibilityPublic, m.Visibility)
	assert.Equal(t, stowgate.ObjectType("weird"), m.Type, "stored values are kept verbatim")
	assert.Equal(t, map[string]string{"x-store-owner": "bob"}, m.Extra)
}

func TestNewMetadataPolicy(t *testing.T) {
	_, err := stowgate.NewMetadataPolicy([]string{"x-store-owner", " X-Store-Label "})
	assert.NoError(t, err)

	_, err = stowgate.NewMetadataPolicy([]string{"owner"})
	assert.ErrorIs(t, err, stowgate.ErrInvalidInput)

	_, err = stowgate.NewMetadataPolicy([]string{"x-store-"})
	assert.ErrorIs(t, err, stowgate.ErrInvalidInput)
}

func TestMetadataPolicy_FromHeader(t *testing.T) {
	policy, err := stowgate.NewMetadataPolicy([]string{"x-store-owner"})
	require.NoError(t, err)

	t.Run("collects known keys", func(t *testing.T) {
		h := http.Header{}
		h.Set("X-Store-Visibility", "public")
		h.Set("X-Store-Type", "text")
		h.Set("X-Store-Owner", "alice")
		h.Set("X-Store-Unknown", "dropped")
		h.Set("Content-Type", "image/png")

		m, dropped, err := policy.FromHeader(h)
		require.NoError(t, err)
		assert.Equal(t, stowgate.VisibilityPublic, m.Visibility)
		assert.Equal(t, stowgate.ObjectTypeText, m.Type)
		assert.Equal(t, map[string]string{"x-store-owner": "alice"}, m.Extra)
		assert.Equal(t, []string{"x-store-unknown"}, dropped)
	})

	t.Run("no metadata headers", func(t *testing.T) {
		m, dropped, err := policy.FromHeader(http.Header{})
		require.NoError(t, err)
		assert.Equal(t, stowgate.Metadata{}, m)
		assert.Empty(t, dropped)
	})

	t.Run("invalid visibility", func(t *testing.T) {
		h := http.Header{}
		h.Set("X-Store-Visibility", "everyone")

		_, _, err := policy.FromHeader(h)
		assert.ErrorIs(t, err, stowgate.ErrInvalidInput)
	})

	t.Run("invalid type", func(t *testing.T) {
		h := http.Header{}
		h.Set("X-Store-Type", "blob")

		_, _, err := policy.FromHeader(h)
		assert.ErrorIs(t, err, stowgate.ErrInvalidInput)
	})
}

func TestMetadata_JSON(t *testing.T) {
	meta := stowgate.Metadata{
		Visibility: stowgate.VisibilityPublic,
		Type:       stowgate.ObjectTypeText,
		Extra:      map[string]string{"x-store-owner": "alice"},
	}

	data, err := json.Marshal(meta)
	require.NoError(t, err)
	assert.JSONEq(t, `{"x-store-visibility":"public","x-store-type":"text","x-store-owner":"alice"}`, string(data))

	var decoded stowgate.Metadata
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, meta, decoded)

	data, err = json.Marshal(stowgate.Metadata{})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}
