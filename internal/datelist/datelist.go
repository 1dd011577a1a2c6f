// Package datelist lê a lista de datas enviada pelo usuário (.csv, .xlsx
// ou .xls). O arquivo precisa de uma coluna chamada "Data".
package datelist

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pbnjay/grate"
	_ "github.com/pbnjay/grate/xls"
	"github.com/xuri/excelize/v2"

	"consulta-di/internal/brfmt"
)

// ColumnName é o cabeçalho procurado (sem diferenciar maiúsculas).
const ColumnName = "data"

var (
	// ErrNoDateColumn indica arquivo sem a coluna "Data".
	ErrNoDateColumn = errors.New("coluna 'Data' não encontrada")
	// ErrUnsupported indica extensão não suportada.
	ErrUnsupported = errors.New("formato não suportado (use CSV, XLS ou XLSX)")
)

// Read abre e lê o arquivo pelo caminho.
func Read(path string) ([]time.Time, error) {
	if strings.EqualFold(filepath.Ext(path), ".xls") {
		return readXLS(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadFrom(filepath.Base(path), f)
}

// ReadFrom lê o conteúdo de um upload; a extensão de name decide o formato.
func ReadFrom(name string, r io.Reader) ([]time.Time, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		rows, err := readCSV(r)
		if err != nil {
			return nil, err
		}
		return fromRows(rows)
	case ".xlsx", ".xlsm":
		rows, err := readXLSX(r)
		if err != nil {
			return nil, err
		}
		return fromRows(rows)
	case ".xls":
		// grate só abre pelo caminho
		tmp, err := os.CreateTemp("", "datas-*.xls")
		if err != nil {
			return nil, err
		}
		defer os.Remove(tmp.Name())
		if _, err := io.Copy(tmp, r); err != nil {
			tmp.Close()
			return nil, err
		}
		if err := tmp.Close(); err != nil {
			return nil, err
		}
		return readXLS(tmp.Name())
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupported, name)
}

// ===== Leitores =====

func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\uFEFF")) // remove BOM

	rd := csv.NewReader(bytes.NewReader(data))
	rd.Comma = sniffComma(data)
	rd.FieldsPerRecord = -1 // tolerante a variações
	rd.TrimLeadingSpace = true
	return rd.ReadAll()
}

// sniffComma escolhe entre ';' (Excel pt-BR) e ',' pela primeira linha.
func sniffComma(data []byte) rune {
	first := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		first = data[:i]
	}
	if bytes.Count(first, []byte(";")) > bytes.Count(first, []byte(",")) {
		return ';'
	}
	return ','
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoDateColumn
	}
	// valor bruto: células de data chegam como serial, não no formato de exibição
	return f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
}

func readXLS(path string) ([]time.Time, error) {
	wb, err := grate.Open(path)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	sheets, err := wb.List()
	if err != nil {
		return nil, err
	}
	if len(sheets) == 0 {
		return nil, ErrNoDateColumn
	}
	sheet, err := wb.Get(sheets[0])
	if err != nil {
		return nil, err
	}
	var rows [][]string
	for sheet.Next() {
		rows = append(rows, sheet.Strings())
	}
	if err := sheet.Err(); err != nil {
		return nil, err
	}
	return fromRows(rows)
}

// ===== Conversão =====

func findDateColumn(header []string) int {
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
		if strings.EqualFold(h, ColumnName) {
			return i
		}
	}
	return -1
}

// fromRows acha a coluna "Data" na primeira linha não vazia, descarta
// células inválidas, remove duplicadas e ordena.
func fromRows(rows [][]string) ([]time.Time, error) {
	hdr := 0
	for hdr < len(rows) && isBlank(rows[hdr]) {
		hdr++
	}
	if hdr == len(rows) {
		return nil, ErrNoDateColumn
	}
	col := findDateColumn(rows[hdr])
	if col < 0 {
		return nil, ErrNoDateColumn
	}

	seen := make(map[time.Time]bool)
	var out []time.Time
	for _, row := range rows[hdr+1:] {
		if col >= len(row) {
			continue
		}
		t, ok := parseCell(row[col])
		if !ok || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// parseCell aceita texto de data ou o número serial do Excel.
func parseCell(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := brfmt.ParseDate(s); err == nil {
		return t, true
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 && serial < 2958466 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return brfmt.Date(t.Year(), t.Month(), t.Day()), true
		}
	}
	return time.Time{}, false
}
