package table

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

const page = `<html><body>
<table><tr><td>externa</td></tr>
  <tr><td><table><tr><td>aninhada</td></tr></table></td></tr>
</table>
<table>
  <tr><td colspan="3">Título</td></tr>
  <tr><th>VENC.</th><th>PREÇO MÍN.</th><th>AJUSTE</th></tr>
  <tr><td> F25 </td><td>10,5</td><td>99.873,21</td></tr>
  <tr><td>G25</td><td>&nbsp;</td></tr>
  <tr><td></td><td>(1) nota</td><td></td></tr>
</table>
</body></html>`

func TestExtractTables(t *testing.T) {
	tables, err := ExtractTables(strings.NewReader(page))
	require.NoError(t, err)
	require.Len(t, tables, 3)

	// a externa contém as linhas da aninhada, em ordem de documento
	assert.Equal(t, [][]string{{"externa"}, {"aninhada"}, {"aninhada"}}, tables[0].Rows)
	assert.Equal(t, [][]string{{"aninhada"}}, tables[1].Rows)

	tbl := tables[2]
	require.Len(t, tbl.Rows, 5)
	assert.Equal(t, []string{"F25", "10,5", "99.873,21"}, tbl.Rows[2])
	assert.Equal(t, []string{"G25", ""}, tbl.Rows[3])
}

func TestReshape(t *testing.T) {
	tables, err := ExtractTables(strings.NewReader(page))
	require.NoError(t, err)
	tbl := tables[2]

	tbl.Pad()
	for _, r := range tbl.Rows {
		assert.Len(t, r, 3)
	}

	require.True(t, tbl.PromoteHeader(1))
	assert.Equal(t, []string{"VENC.", "PREÇO MÍN.", "AJUSTE"}, tbl.Header)
	assert.Len(t, tbl.Rows, 3)

	tbl.DropTrailingBlank()
	assert.Len(t, tbl.Rows, 2)
	tbl.DropTrailingBlank()
	assert.Len(t, tbl.Rows, 2, "G25 não é rodapé")

	tbl.Rename(map[string]string{"VENC.": "VENCIMENTO", "AJUSTE": "PRECO AJUSTE"})
	assert.Equal(t, 0, tbl.Index("VENCIMENTO"))
	assert.Equal(t, 2, tbl.Index("PRECO AJUSTE"))
	assert.Equal(t, -1, tbl.Index("VENC."))
	assert.Equal(t, "99.873,21", tbl.Cell(0, 2))
	assert.Equal(t, "", tbl.Cell(9, 9))

	assert.False(t, tbl.PromoteHeader(10))
}

func TestDecodeLatin1(t *testing.T) {
	latin1, err := charmap.ISO8859_1.NewEncoder().String("<table><tr><td>PREÇO MÉD.</td></tr></table>")
	require.NoError(t, err)

	tables, err := ExtractTables(DecodeLatin1(bytes.NewReader([]byte(latin1))))
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "PREÇO MÉD.", tables[0].Rows[0][0])
}
