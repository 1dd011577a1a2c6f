// Package frame define a tabela normalizada que sai de cada fonte e vai para
// a planilha.
package frame

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind é o tipo de uma coluna. Define a conversão e o formato na planilha.
type Kind int

const (
	Text Kind = iota
	Date
	Integer
	Decimal
)

func (k Kind) String() string {
	switch k {
	case Date:
		return "date"
	case Integer:
		return "integer"
	case Decimal:
		return "decimal"
	default:
		return "text"
	}
}

// Column descreve uma coluna.
type Column struct {
	Name string
	Kind Kind
}

// ErrSchemaMismatch indica frames com colunas diferentes.
var ErrSchemaMismatch = errors.New("colunas incompatíveis")

// Frame guarda linhas de células tipadas. Células ausentes são nil;
// as demais são time.Time, int64, decimal.Decimal ou string conforme o Kind.
type Frame struct {
	Columns []Column
	Rows    [][]any
}

// New cria um frame vazio com o esquema dado.
func New(cols []Column) *Frame {
	return &Frame{Columns: append([]Column(nil), cols...)}
}

// Len devolve o número de linhas.
func (f *Frame) Len() int { return len(f.Rows) }

// Names devolve os nomes das colunas.
func (f *Frame) Names() []string {
	out := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		out[i] = c.Name
	}
	return out
}

// Index devolve a posição da coluna ou -1.
func (f *Frame) Index(name string) int {
	for i, c := range f.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Append valida e acrescenta uma linha.
func (f *Frame) Append(row []any) error {
	if len(row) != len(f.Columns) {
		return fmt.Errorf("linha com %d células, esperado %d", len(row), len(f.Columns))
	}
	for i, v := range row {
		if v == nil {
			continue
		}
		if !fits(f.Columns[i].Kind, v) {
			return fmt.Errorf("coluna %q (%s) não aceita %T", f.Columns[i].Name, f.Columns[i].Kind, v)
		}
	}
	f.Rows = append(f.Rows, row)
	return nil
}

func fits(k Kind, v any) bool {
	switch v.(type) {
	case time.Time:
		return k == Date
	case int64:
		return k == Integer
	case decimal.Decimal:
		return k == Decimal
	case string:
		return k == Text
	}
	return false
}

// Head devolve um frame com as n primeiras linhas.
func (f *Frame) Head(n int) *Frame {
	if n < 0 {
		n = 0
	}
	if n > len(f.Rows) {
		n = len(f.Rows)
	}
	out := New(f.Columns)
	out.Rows = f.Rows[:n]
	return out
}

func sameSchema(a, b []Column) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Concat empilha frames de mesmo esquema, na ordem recebida.
func Concat(frames ...*Frame) (*Frame, error) {
	var out *Frame
	for _, f := range frames {
		if f == nil {
			continue
		}
		if out == nil {
			out = New(f.Columns)
		} else if !sameSchema(out.Columns, f.Columns) {
			return nil, fmt.Errorf("%w: %v x %v", ErrSchemaMismatch, out.Names(), f.Names())
		}
		out.Rows = append(out.Rows, f.Rows...)
	}
	if out == nil {
		return nil, errors.New("nenhum frame para concatenar")
	}
	return out, nil
}
