package frame

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var schema = []Column{
	{"DATA", Date},
	{"CODIGO", Text},
	{"QTD", Integer},
	{"PRECO", Decimal},
}

func TestAppendValidatesKinds(t *testing.T) {
	f := New(schema)
	now := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	require.NoError(t, f.Append([]any{now, "F25", int64(10), decimal.RequireFromString("99.5")}))
	require.NoError(t, f.Append([]any{nil, nil, nil, nil}))
	assert.Error(t, f.Append([]any{now, "F25", 10, nil}), "int em vez de int64")
	assert.Error(t, f.Append([]any{now}))
	assert.Equal(t, 2, f.Len())
}

func TestConcat(t *testing.T) {
	a := New(schema)
	require.NoError(t, a.Append([]any{nil, "F25", nil, nil}))
	b := New(schema)
	require.NoError(t, b.Append([]any{nil, "G25", nil, nil}))
	require.NoError(t, b.Append([]any{nil, "H25", nil, nil}))

	out, err := Concat(a, nil, b)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Len())
	assert.Equal(t, "H25", out.Rows[2][1])

	// a não foi alterado
	assert.Equal(t, 1, a.Len())

	other := New([]Column{{"X", Text}})
	_, err = Concat(a, other)
	assert.ErrorIs(t, err, ErrSchemaMismatch)

	_, err = Concat()
	assert.Error(t, err)
}

func TestHeadAndIndex(t *testing.T) {
	f := New(schema)
	for i := 0; i < 8; i++ {
		require.NoError(t, f.Append([]any{nil, nil, int64(i), nil}))
	}
	assert.Equal(t, 5, f.Head(5).Len())
	assert.Equal(t, 8, f.Head(50).Len())
	assert.Equal(t, 0, f.Head(-1).Len())
	assert.Equal(t, f.Columns, f.Head(-1).Columns)
	assert.Equal(t, 2, f.Index("QTD"))
	assert.Equal(t, -1, f.Index("NADA"))
	assert.Equal(t, []string{"DATA", "CODIGO", "QTD", "PRECO"}, f.Names())
}
