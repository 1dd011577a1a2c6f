package datelist

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"consulta-di/internal/brfmt"
)

func isoAll(ts []time.Time) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = brfmt.FormatISO(t)
	}
	return out
}

func TestReadCSVSemicolon(t *testing.T) {
	csv := "\uFEFFid;DATA;obs\n1;16/01/2024;x\n2;15/01/2024;\n3;lixo;\n4;16/01/2024;dup\n5\n"
	dates, err := ReadFrom("datas.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-15", "2024-01-16"}, isoAll(dates))
}

func TestReadCSVComma(t *testing.T) {
	csv := "Data,valor\n2024-03-01,\"1,5\"\n20240228,2\n"
	dates, err := ReadFrom("DATAS.CSV", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-02-28", "2024-03-01"}, isoAll(dates))
}

func TestReadCSVWithoutDateColumn(t *testing.T) {
	_, err := ReadFrom("datas.csv", strings.NewReader("dia;mes\n1;2\n"))
	assert.ErrorIs(t, err, ErrNoDateColumn)

	_, err = ReadFrom("vazio.csv", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoDateColumn)
}

func TestReadUnsupported(t *testing.T) {
	_, err := ReadFrom("datas.pdf", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := "Sheet1"
	f.SetCellValue(sheet, "A1", "Ativo")
	f.SetCellValue(sheet, "B1", "data")
	f.SetCellValue(sheet, "B2", "02/01/2025")
	// serial do Excel sem formato de data: 45306 = 15/01/2024
	f.SetCellValue(sheet, "B3", 45306)
	f.SetCellValue(sheet, "B4", "")
	f.SetCellValue(sheet, "B5", "02/01/2025")

	path := filepath.Join(t.TempDir(), "datas.xlsx")
	require.NoError(t, f.SaveAs(path))

	dates, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-15", "2025-01-02"}, isoAll(dates))
}

func TestReadXLSXDateCells(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := "Sheet1"
	require.NoError(t, f.SetCellValue(sheet, "A1", "Data"))

	// serial com formato de data 14 (m/d/yy): GetRows formatado devolveria "01-15-24"
	style, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue(sheet, "A2", 45306))
	require.NoError(t, f.SetCellStyle(sheet, "A2", "A2", style))
	// time.Time gravado pelo excelize
	require.NoError(t, f.SetCellValue(sheet, "A3", time.Date(2024, time.January, 16, 0, 0, 0, 0, time.UTC)))

	var buf bytes.Buffer
	_, err = f.WriteTo(&buf)
	require.NoError(t, err)

	dates, err := ReadFrom("datas.xlsx", &buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-15", "2024-01-16"}, isoAll(dates))
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nada.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestParseCell(t *testing.T) {
	d, ok := parseCell("45306")
	require.True(t, ok)
	assert.Equal(t, "2024-01-15", brfmt.FormatISO(d))

	_, ok = parseCell("-3")
	assert.False(t, ok)
	_, ok = parseCell(" ")
	assert.False(t, ok)
}
