package cotahist

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

// record monta um registro de 245 posições a partir de (início, valor).
type record []byte

func newRecord(tipo string) record {
	r := record(bytes.Repeat([]byte(" "), RecordLen))
	r.put(1, tipo)
	return r
}

func (r record) put(from int, v string) record {
	copy(r[from-1:], v)
	return r
}

func (r record) num(from, to int, n int64) record {
	return r.put(from, fmt.Sprintf("%0*d", to-from+1, n))
}

func quote(ticker string, tpmerc int, name string, abe, max, min, med, ult int64) record {
	r := newRecord("01")
	r.put(3, "20240115")
	r.put(11, "02")
	r.put(13, fmt.Sprintf("%-12s", ticker))
	r.num(25, 27, int64(tpmerc))
	r.put(28, fmt.Sprintf("%-12s", name))
	r.put(40, "ON      NM")
	r.put(53, "R$  ")
	r.num(57, 69, abe)
	r.num(70, 82, max)
	r.num(83, 95, min)
	r.num(96, 108, med)
	r.num(109, 121, ult)
	r.num(122, 134, ult-1)
	r.num(135, 147, ult+1)
	r.num(148, 152, 1234)
	r.num(153, 170, 567800)
	r.num(171, 188, 1234567890)
	r.num(189, 201, 0)
	r.put(202, "0")
	r.put(203, "99991231")
	r.num(211, 217, 1)
	r.num(218, 230, 0)
	r.put(231, "BRPETRACNPR6")
	r.num(243, 245, 100)
	return r
}

func header() record {
	return newRecord("00").put(3, "COTAHIST.2024").put(16, "BOVESPA ").put(24, "20240116")
}

func trailer(total int64) record {
	return newRecord("99").put(3, "COTAHIST.2024").put(16, "BOVESPA ").put(24, "20240116").num(32, 42, total)
}

func build(recs ...record) []byte {
	var b bytes.Buffer
	for _, r := range recs {
		b.Write(r)
		b.WriteString("\r\n")
	}
	return b.Bytes()
}

func TestParse(t *testing.T) {
	data := build(
		header(),
		quote("PETR4", 10, "PETROBRAS", 3750, 3812, 3701, 3760, 3790),
		quote("VALE3", 10, "VALE", 6800, 6900, 6750, 6850, 6880),
		quote("PETRA380", 70, "PETR", 10, 20, 5, 12, 15),
		trailer(5),
	)

	f, err := Parse(bytes.NewReader(data), Filter{})
	require.NoError(t, err)
	assert.Equal(t, "COTAHIST.2024", f.Header.FileName)
	assert.Equal(t, "BOVESPA", f.Header.Origin)
	assert.Equal(t, "2024-01-16", f.Header.GeneratedAt.Format("2006-01-02"))
	require.NotNil(t, f.Trailer)
	assert.Equal(t, int64(5), f.Trailer.TotalRecords)
	require.Len(t, f.Quotes, 3)

	q := f.Quotes[0]
	assert.Equal(t, "PETR4", q.Ticker)
	assert.Equal(t, "2024-01-15", q.Date.Format("2006-01-02"))
	assert.Equal(t, "02", q.BDICode)
	assert.Equal(t, 10, q.MarketType)
	assert.Equal(t, "PETROBRAS", q.ShortName)
	assert.Equal(t, "ON      NM", q.Specification)
	assert.Equal(t, "R$", q.Currency)
	assert.Equal(t, "37.5", q.Open.String())
	assert.Equal(t, "38.12", q.High.String())
	assert.Equal(t, "37.01", q.Low.String())
	assert.Equal(t, "37.6", q.Average.String())
	assert.Equal(t, "37.9", q.Close.String())
	assert.Equal(t, int64(1234), q.Trades)
	assert.Equal(t, int64(567800), q.Quantity)
	assert.Equal(t, "12345678.9", q.Volume.String())
	assert.True(t, q.Expiry.IsZero())
	assert.Equal(t, "BRPETRACNPR6", q.ISIN)
	assert.Equal(t, 100, q.DistributionNo)
}

func TestParseFilter(t *testing.T) {
	data := build(
		header(),
		quote("PETR4", 10, "PETROBRAS", 1, 1, 1, 1, 1),
		quote("VALE3", 10, "VALE", 1, 1, 1, 1, 1),
		quote("PETRA380", 70, "PETR", 1, 1, 1, 1, 1),
		trailer(5),
	)

	f, err := Parse(bytes.NewReader(data), Filter{Prefixes: []string{"petr"}})
	require.NoError(t, err)
	assert.Len(t, f.Quotes, 2)

	f, err = Parse(bytes.NewReader(data), Filter{Prefixes: []string{"PETR"}, MarketTypes: []int{10}})
	require.NoError(t, err)
	require.Len(t, f.Quotes, 1)
	assert.Equal(t, "PETR4", f.Quotes[0].Ticker)
}

func TestParseLatin1Name(t *testing.T) {
	name, err := charmap.ISO8859_1.NewEncoder().String("AÇÚCAR")
	require.NoError(t, err)
	require.Len(t, name, 6)

	q := quote("ACUC3", 10, "", 1, 1, 1, 1, 1)
	q.put(28, name)
	f, err := Parse(bytes.NewReader(build(header(), q, trailer(3))), Filter{})
	require.NoError(t, err)
	assert.Equal(t, "AÇÚCAR", f.Quotes[0].ShortName)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(bytes.NewReader(build(header(), trailer(7))), Filter{})
	assert.ErrorIs(t, err, ErrTrailerCount)

	_, err = Parse(strings.NewReader("01short\n"), Filter{})
	assert.ErrorIs(t, err, ErrShortRecord)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Line)

	bad := quote("PETR4", 10, "PETROBRAS", 1, 1, 1, 1, 1)
	bad.put(57, "ABCDEFGHIJKLM")
	_, err = Parse(bytes.NewReader(build(header(), bad)), Filter{})
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 2, pe.Line)
	assert.Equal(t, "PREABE", pe.Field)

	_, err = Parse(bytes.NewReader(build(newRecord("42"))), Filter{})
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "TIPREG", pe.Field)
}

func TestParseShortTrailer(t *testing.T) {
	data := append(build(header()), []byte("99COTAHIST.2024BOVESPA 2024011600000000002\n")...)
	f, err := Parse(bytes.NewReader(data), Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.Trailer.TotalRecords)
}

func TestUnzip(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("COTAHIST_D15012024.TXT")
	require.NoError(t, err)
	_, err = w.Write(build(header(), trailer(2)))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	rc, err := Unzip(buf.Bytes())
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("00COTAHIST.2024")))

	_, err = Unzip([]byte("não é zip"))
	assert.Error(t, err)
}
