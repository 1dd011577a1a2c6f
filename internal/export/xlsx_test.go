package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"consulta-di/internal/brfmt"
	"consulta-di/internal/frame"
)

func sampleFrame(t *testing.T) *frame.Frame {
	f := frame.New([]frame.Column{
		{Name: "DATA REFERÊNCIA", Kind: frame.Date},
		{Name: "MÊS/ANO VENCIMENTO", Kind: frame.Text},
		{Name: "CONTRATOS EM ABERTO", Kind: frame.Integer},
		{Name: "ULTIMO PRECO", Kind: frame.Decimal},
	})
	ref := brfmt.Date(2024, time.January, 15)
	require.NoError(t, f.Append([]any{ref, "02/2024", int64(1234567), decimal.RequireFromString("10.655")}))
	require.NoError(t, f.Append([]any{ref, "03/2024", nil, nil}))
	return f
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleFrame(t), Options{}))

	book, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer book.Close()

	assert.Equal(t, []string{DefaultSheet}, book.GetSheetList())

	raw := excelize.Options{RawCellValue: true}
	get := func(cell string) string {
		v, err := book.GetCellValue(DefaultSheet, cell, raw)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "DATA REFERÊNCIA", get("A1"))
	assert.Equal(t, "ULTIMO PRECO", get("D1"))
	assert.Equal(t, "45306", get("A2"), "serial de 15/01/2024")
	assert.Equal(t, "02/2024", get("B2"))
	assert.Equal(t, "1234567", get("C2"))
	assert.Equal(t, "10.655", get("D2"))
	assert.Equal(t, "", get("C3"))
	assert.Equal(t, "", get("D3"))

	width, err := book.GetColWidth(DefaultSheet, "D")
	require.NoError(t, err)
	assert.Equal(t, float64(columnWidth), width)

	// data e número com formato próprio
	styleA, err := book.GetCellStyle(DefaultSheet, "A2")
	require.NoError(t, err)
	styleD, err := book.GetCellStyle(DefaultSheet, "D2")
	require.NoError(t, err)
	assert.NotZero(t, styleA)
	assert.NotZero(t, styleD)
	assert.NotEqual(t, styleA, styleD)

	st, err := book.GetStyle(styleA)
	require.NoError(t, err)
	require.NotNil(t, st.CustomNumFmt)
	assert.Equal(t, "dd/mm/yyyy", *st.CustomNumFmt)
}

func TestWriteCustomSheet(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleFrame(t), Options{Sheet: "Taxas"}))

	book, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer book.Close()
	assert.Equal(t, []string{"Taxas"}, book.GetSheetList())

	rows, err := book.GetRows("Taxas")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestFileName(t *testing.T) {
	now := time.Date(2024, time.January, 20, 10, 0, 0, 0, time.UTC)
	one := []time.Time{brfmt.Date(2024, time.January, 15)}
	many := []time.Time{one[0], brfmt.Date(2024, time.January, 16)}

	assert.Equal(t, "DI_FUTURO_2024-01-15.xlsx", FileName("", one, now))
	assert.Equal(t, "DI_FUTURO_CONSOLIDADO_20240120.xlsx", FileName("", many, now))
	assert.Equal(t, "TAXAS_CONSOLIDADO_20240120.xlsx", FileName("TAXAS", nil, now))
}
