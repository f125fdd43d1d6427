package jsonrepair

import (
	"encoding/json"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestRecover_Direct(t *testing.T) {
	res, err := Recover(`{"contracts":[{"clientName":"A"}],"receivables":[],"expenses":[{"amount":10}]}`)
	require.NoError(t, err)
	assert.Equal(t, LayerDirect, res.Layer)
	assert.Len(t, res.Contracts, 1)
	assert.Len(t, res.Expenses, 1)
}

func TestRecover_FencedWithProse(t *testing.T) {
	text := "```json\n{\"contracts\": [{\"clientName\": \"A\"}]}\n```"
	res, err := Recover(text)
	require.NoError(t, err)
	assert.Equal(t, LayerDirect, res.Layer)
	assert.Len(t, res.Contracts, 1)

	res, err = Recover("Here is the data:\n{\"expenses\": [{\"amount\": 5}]}\nLet me know.")
	require.NoError(t, err)
	assert.Len(t, res.Expenses, 1)
}

func TestRecover_Repair(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		contracts   int
		receivables int
		expenses    int
	}{
		{
			name:      "trailing commas",
			text:      `{"contracts":[{"clientName":"A",},],"receivables":[],"expenses":[],}`,
			contracts: 1,
		},
		{
			name:      "missing comma between objects",
			text:      "{\"contracts\":[{\"clientName\":\"A\"}\n{\"clientName\":\"B\"}]}",
			contracts: 2,
		},
		{
			name:     "raw newline inside string",
			text:     "{\"expenses\":[{\"description\":\"line1\nline2\",\"amount\":3}]}",
			expenses: 1,
		},
		{
			name:        "truncated mid-object",
			text:        `{"contracts":[{"clientName":"A"}],"receivables":[{"amount":100},{"amount":`,
			contracts:   1,
			receivables: 2,
		},
		{
			name:        "truncated inside string",
			text:        `{"receivables":[{"amount":100,"description":"Parcela 2 de`,
			receivables: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Recover(tt.text)
			require.NoError(t, err)
			assert.Equal(t, LayerRepair, res.Layer)
			assert.Len(t, res.Contracts, tt.contracts)
			assert.Len(t, res.Receivables, tt.receivables)
			assert.Len(t, res.Expenses, tt.expenses)
		})
	}
}

func TestRecover_RepairKeepsEscapedNewline(t *testing.T) {
	res, err := Recover("{\"expenses\":[{\"description\":\"a\nb\",}]}")
	require.NoError(t, err)
	require.Len(t, res.Expenses, 1)
	assert.Equal(t, "a\nb", res.Expenses[0]["description"])
}

func TestRecover_PartialArrays(t *testing.T) {
	text := `{
  "contracts": [{"clientName": "A", "notes": "see [1] and ]"}],
  "receivables": [{"amount": 100 USD}]
}`
	res, err := Recover(text)
	require.NoError(t, err)
	assert.Equal(t, LayerExtract, res.Layer)
	require.Len(t, res.Contracts, 1)
	assert.Equal(t, "see [1] and ]", res.Contracts[0]["notes"])
	assert.Empty(t, res.Receivables)
	assert.Empty(t, res.Expenses)
}

func TestRecover_Unrecoverable(t *testing.T) {
	_, err := Recover("I could not find any financial data in this file.")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUnrecoverable))
}

func TestParseObject(t *testing.T) {
	var out struct {
		EntityType string  `json:"entityType"`
		Confidence float64 `json:"confidence"`
	}

	layer, err := ParseObject(`{"entityType":"expense","confidence":0.9}`, &out)
	require.NoError(t, err)
	assert.Equal(t, LayerDirect, layer)

	layer, err = ParseObject("Sure: {\"entityType\":\"receivable\",\"confidence\":0.75,}", &out)
	require.NoError(t, err)
	assert.Equal(t, LayerRepair, layer)
	assert.Equal(t, "receivable", out.EntityType)
	assert.InDelta(t, 0.75, out.Confidence, 1e-9)

	_, err = ParseObject("no json here", &out)
	assert.True(t, eris.Is(err, ErrUnrecoverable))
}

func TestRepair_OutputIsValidJSON(t *testing.T) {
	inputs := []string{
		`{"a":[1,2,],}`,
		`[{"a":"x"} {"a":"y"}]`,
		`{"a":{"b":[true false]}`,
		`{"a":"unterminated`,
		`{"a":1, "b`,
		"```\n{\"a\":1}\n```",
	}
	for _, in := range inputs {
		out := Repair(in)
		assert.True(t, json.Valid([]byte(out)), "%q -> %q", in, out)
	}
}

func TestExtractArray(t *testing.T) {
	text := `{"meta":"\"expenses\": [fake]","expenses": [{"d":"]"}, {"d":"[x"}], "other": 1}`
	raw, ok := ExtractArray(text, "expenses")
	require.True(t, ok)
	assert.Equal(t, `[{"d":"]"}, {"d":"[x"}]`, raw)

	_, ok = ExtractArray(text, "contracts")
	assert.False(t, ok)

	raw, ok = ExtractArray(`{"contracts": [{"a":1}, {"b":`, "contracts")
	require.True(t, ok)
	assert.Equal(t, `[{"a":1}, {"b":`, raw)
}

func TestLayerString(t *testing.T) {
	assert.Equal(t, "direct", LayerDirect.String())
	assert.Equal(t, "repair", LayerRepair.String())
	assert.Equal(t, "extract", LayerExtract.String())
	assert.Equal(t, "none", LayerNone.String())
}
