// Package table extrai tabelas de páginas HTML (o "Excel" legado da BM&F é
// HTML servido como .xls) e faz o reshape linha/cabeçalho.
package table

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/encoding/charmap"
)

// Raw é uma tabela como publicada: cabeçalho opcional e linhas de texto.
type Raw struct {
	Header []string
	Rows   [][]string
}

// DecodeLatin1 envolve r para converter ISO-8859-1 em UTF-8.
func DecodeLatin1(r io.Reader) io.Reader {
	return charmap.ISO8859_1.NewDecoder().Reader(r)
}

// ExtractTables devolve todas as <table> do documento, aninhadas inclusive,
// em ordem de documento. Linhas sem células são descartadas.
func ExtractTables(r io.Reader) ([]Raw, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	var out []Raw
	doc.Find("table").Each(func(_ int, tbl *goquery.Selection) {
		var raw Raw
		tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var cells []string
			tr.ChildrenFiltered("td, th").Each(func(_ int, td *goquery.Selection) {
				cells = append(cells, cleanText(td.Text()))
			})
			if len(cells) > 0 {
				raw.Rows = append(raw.Rows, cells)
			}
		})
		out = append(out, raw)
	})
	return out, nil
}

// cleanText colapsa espaços (inclusive &nbsp;) como o navegador exibe.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Width devolve o número de colunas da linha mais larga.
func (t *Raw) Width() int {
	w := len(t.Header)
	for _, r := range t.Rows {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// Pad completa todas as linhas com "" até a largura da maior.
func (t *Raw) Pad() {
	w := t.Width()
	for i, r := range t.Rows {
		if len(r) < w {
			t.Rows[i] = append(r, make([]string, w-len(r))...)
		}
	}
	if t.Header != nil && len(t.Header) < w {
		t.Header = append(t.Header, make([]string, w-len(t.Header))...)
	}
}

// PromoteHeader usa a linha idx como cabeçalho e mantém só as linhas depois dela.
func (t *Raw) PromoteHeader(idx int) bool {
	if idx < 0 || idx >= len(t.Rows) {
		return false
	}
	t.Header = t.Rows[idx]
	t.Rows = t.Rows[idx+1:]
	return true
}

// DropTrailingBlank remove a última linha quando a primeira célula é vazia
// (rodapé de totais/observações da planilha).
func (t *Raw) DropTrailingBlank() {
	n := len(t.Rows)
	if n == 0 {
		return
	}
	last := t.Rows[n-1]
	if len(last) == 0 || strings.TrimSpace(last[0]) == "" {
		t.Rows = t.Rows[:n-1]
	}
}

// Rename troca nomes de colunas do cabeçalho; nomes ausentes no mapa ficam.
func (t *Raw) Rename(names map[string]string) {
	for i, h := range t.Header {
		if to, ok := names[h]; ok {
			t.Header[i] = to
		}
	}
}

// Index devolve a posição da coluna no cabeçalho ou -1.
func (t *Raw) Index(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Cell devolve a célula (i, j) ou "" quando não existe.
func (t *Raw) Cell(i, j int) string {
	if i < 0 || i >= len(t.Rows) || j < 0 || j >= len(t.Rows[i]) {
		return ""
	}
	return t.Rows[i][j]
}
