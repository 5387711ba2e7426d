package cases

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	list := Generate(12)
	require.Len(t, list, 12)

	assert.Equal(t, Case{
		ID:           "case_001",
		ImageURL:     "https://picsum.photos/seed/promptheist_001/1200/700",
		SecretPrompt: "watercolor scene of a floating island village in a busy night market, warm lantern light, film grain, minimalist background",
	}, list[0])
	assert.Equal(t, "case_012", list[11].ID)

	// deterministic
	assert.Equal(t, list, Generate(12))
	assert.Empty(t, Generate(0))
	assert.Empty(t, Generate(-1))
}

func TestParseGeneratedPack(t *testing.T) {
	data, err := json.Marshal(Generate(20))
	require.NoError(t, err)

	pack, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, 20, pack.Len())

	c, err := pack.Find("case_007")
	require.NoError(t, err)
	assert.Equal(t, "case_007", c.ID)

	_, err = pack.Find("case_999")
	assert.ErrorIs(t, err, ErrCaseNotFound)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pack.json")
	require.NoError(t, Save(path, Generate(10)))

	pack, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Generate(10), pack.Cases())

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]map[string]any) any
	}{
		{"not an array", func(list []map[string]any) any { return map[string]any{"cases": list} }},
		{"too few cases", func(list []map[string]any) any { return list[:9] }},
		{"missing id", func(list []map[string]any) any { delete(list[0], "id"); return list }},
		{"blank prompt", func(list []map[string]any) any { list[2]["secretPrompt"] = "   "; return list }},
		{"bad image url", func(list []map[string]any) any { list[3]["imageUrl"] = "ftp://x/y.png"; return list }},
		{"id not a string", func(list []map[string]any) any { list[4]["id"] = 4; return list }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.mutate(rawPack(t)))
			require.NoError(t, err)

			_, err = Parse(data)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.NotEmpty(t, verr.Errors)
		})
	}
}

func TestParseRejectsDuplicateIDs(t *testing.T) {
	list := Generate(10)
	list[5].ID = list[1].ID
	data, err := json.Marshal(list)
	require.NoError(t, err)

	_, err = Parse(data)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Errors, 1)
	assert.Equal(t, "5.id", verr.Errors[0].Field)
	assert.Contains(t, verr.Error(), "duplicate case id")
}

func TestNewPack(t *testing.T) {
	list := Generate(10)
	list[0].ImageURL = "/cases/images/001.webp"
	_, err := NewPack(list)
	require.NoError(t, err)

	list[1].SecretPrompt = " "
	list[2].ImageURL = "images/003.webp"
	_, err = NewPack(list[:10])
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.ElementsMatch(t, []FieldError{
		{Field: "1.secretPrompt", Message: `failed "notblank" check`},
		{Field: "2.imageUrl", Message: `failed "imageurl" check`},
	}, verr.Errors)

	_, err = NewPack(Generate(3))
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "(root)", verr.Errors[0].Field)
}

func rawPack(t *testing.T) []map[string]any {
	data, err := json.Marshal(Generate(10))
	require.NoError(t, err)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(data, &list))
	return list
}
