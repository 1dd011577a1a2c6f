// Package export grava o frame consolidado em .xlsx.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"consulta-di/internal/frame"
)

const (
	// ContentType é o MIME do .xlsx.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	DefaultSheet  = "DI_Futuro_Consolidado"
	DefaultPrefix = "DI_FUTURO"

	columnWidth = 15
)

// Options configura a planilha.
type Options struct {
	Sheet string
}

// FileName segue o padrão de download: DI_FUTURO_2024-01-15.xlsx para uma
// data, DI_FUTURO_CONSOLIDADO_20240120.xlsx (data de hoje) para várias.
func FileName(prefix string, dates []time.Time, now time.Time) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if len(dates) == 1 {
		return fmt.Sprintf("%s_%s.xlsx", prefix, dates[0].Format("2006-01-02"))
	}
	return fmt.Sprintf("%s_CONSOLIDADO_%s.xlsx", prefix, now.Format("20060102"))
}

// Write grava f em w como uma planilha com cabeçalho na linha 1.
func Write(w io.Writer, f *frame.Frame, opts Options) error {
	book, err := Build(f, opts)
	if err != nil {
		return err
	}
	defer book.Close()
	_, err = book.WriteTo(w)
	return err
}

// Build monta o arquivo em memória.
func Build(f *frame.Frame, opts Options) (*excelize.File, error) {
	sheet := opts.Sheet
	if sheet == "" {
		sheet = DefaultSheet
	}

	book := excelize.NewFile()
	if err := book.SetSheetName(book.GetSheetName(0), sheet); err != nil {
		book.Close()
		return nil, err
	}

	styles, err := newStyles(book)
	if err != nil {
		book.Close()
		return nil, err
	}

	if err := writeHeader(book, sheet, f.Columns, styles.header); err != nil {
		book.Close()
		return nil, err
	}
	for i, col := range f.Columns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			book.Close()
			return nil, err
		}
		style, ok := styles.byKind[col.Kind]
		if !ok {
			continue
		}
		if err := book.SetColWidth(sheet, name, name, columnWidth); err != nil {
			book.Close()
			return nil, err
		}
		if err := book.SetColStyle(sheet, name, style); err != nil {
			book.Close()
			return nil, err
		}
	}

	for r, row := range f.Rows {
		values := make([]any, len(row))
		for c, v := range row {
			values[c] = cellValue(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			book.Close()
			return nil, err
		}
		if err := book.SetSheetRow(sheet, cell, &values); err != nil {
			book.Close()
			return nil, err
		}
		// SetSheetRow não herda o estilo da coluna
		for c, col := range f.Columns {
			style, ok := styles.byKind[col.Kind]
			if !ok || row[c] == nil {
				continue
			}
			ref, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := book.SetCellStyle(sheet, ref, ref, style); err != nil {
				book.Close()
				return nil, err
			}
		}
	}
	return book, nil
}

type styleSet struct {
	header int
	byKind map[frame.Kind]int
}

func newStyles(book *excelize.File) (styleSet, error) {
	date := "dd/mm/yyyy"
	number := "#,##0.00"
	integer := "#,##0"

	set := styleSet{byKind: make(map[frame.Kind]int)}
	var err error
	if set.header, err = book.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return set, err
	}
	for kind, f := range map[frame.Kind]*string{frame.Date: &date, frame.Decimal: &number, frame.Integer: &integer} {
		id, err := book.NewStyle(&excelize.Style{CustomNumFmt: f})
		if err != nil {
			return set, err
		}
		set.byKind[kind] = id
	}
	return set, nil
}

func writeHeader(book *excelize.File, sheet string, cols []frame.Column, style int) error {
	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c.Name
	}
	if err := book.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(cols), 1)
	if err != nil {
		return err
	}
	return book.SetCellStyle(sheet, "A1", last, style)
}

// cellValue converte as células do frame para tipos que o excelize grava.
func cellValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case decimal.Decimal:
		f, _ := x.Float64()
		return f
	case time.Time:
		// data sem fuso: o Excel não guarda timezone
		y, m, d := x.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return v
}
