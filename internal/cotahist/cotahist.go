// Package cotahist lê o arquivo de cotações históricas da B3 (COTAHIST),
// um arquivo texto de largura fixa com registros de 245 bytes em ISO-8859-1.
//
// Tipos de registro: 00 (header), 01 (cotação) e 99 (trailer).
package cotahist

import (
	"archive/zip"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"

	"consulta-di/internal/brfmt"
)

// RecordLen é o tamanho de cada registro, sem o fim de linha.
const RecordLen = 245

var (
	// ErrShortRecord indica linha com menos de 245 bytes.
	ErrShortRecord = errors.New("registro menor que 245 bytes")
	// ErrTrailerCount indica trailer com total de registros divergente.
	ErrTrailerCount = errors.New("total de registros do trailer não confere")
)

// ParseError localiza o erro no arquivo.
type ParseError struct {
	Line  int
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("cotahist linha %d campo %s: %v", e.Line, e.Field, e.Err)
	}
	return fmt.Sprintf("cotahist linha %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Header é o registro 00.
type Header struct {
	FileName    string
	Origin      string
	GeneratedAt time.Time
}

// Quote é o registro 01.
type Quote struct {
	Date           time.Time
	BDICode        string
	Ticker         string
	MarketType     int
	ShortName      string
	Specification  string
	TermDays       string
	Currency       string
	Open           decimal.Decimal
	High           decimal.Decimal
	Low            decimal.Decimal
	Average        decimal.Decimal
	Close          decimal.Decimal
	BestBid        decimal.Decimal
	BestAsk        decimal.Decimal
	Trades         int64
	Quantity       int64
	Volume         decimal.Decimal
	StrikePrice    decimal.Decimal
	StrikeIndex    string
	Expiry         time.Time // zero quando DATVEN = 99991231
	QuoteFactor    int64
	StrikePoints   decimal.Decimal
	ISIN           string
	DistributionNo int
}

// Trailer é o registro 99.
type Trailer struct {
	FileName     string
	Origin       string
	GeneratedAt  time.Time
	TotalRecords int64
}

// Filter seleciona cotações. Campos vazios não filtram.
type Filter struct {
	Prefixes    []string
	MarketTypes []int
}

// Match informa se a cotação passa no filtro.
func (f Filter) Match(q *Quote) bool {
	if len(f.Prefixes) > 0 {
		ok := false
		for _, p := range f.Prefixes {
			if strings.HasPrefix(q.Ticker, strings.ToUpper(p)) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(f.MarketTypes) > 0 {
		ok := false
		for _, m := range f.MarketTypes {
			if q.MarketType == m {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// File é o conteúdo lido.
type File struct {
	Header  Header
	Quotes  []Quote
	Trailer *Trailer
}

// ===== Leitura =====

// Parse lê todo o arquivo e guarda só as cotações aceitas pelo filtro.
// O trailer, quando presente, precisa bater com o total de registros lidos.
func Parse(r io.Reader, filter Filter) (*File, error) {
	sc := bufio.NewScanner(charmap.ISO8859_1.NewDecoder().Reader(r))
	sc.Buffer(make([]byte, 0, 4*RecordLen), 64*RecordLen)

	var out File
	var records int64
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(raw) == "" {
			continue
		}
		rec := []rune(raw)
		if len(rec) < RecordLen {
			// o trailer às vezes vem sem o preenchimento final
			if !strings.HasPrefix(raw, "99") {
				return nil, &ParseError{Line: line, Err: ErrShortRecord}
			}
			rec = []rune(raw + strings.Repeat(" ", RecordLen-len(rec)))
		}
		records++

		switch string(rec[0:2]) {
		case "00":
			h, err := parseHeader(rec)
			if err != nil {
				return nil, withLine(err, line)
			}
			out.Header = h
		case "01":
			q, err := parseQuote(rec)
			if err != nil {
				return nil, withLine(err, line)
			}
			if filter.Match(&q) {
				out.Quotes = append(out.Quotes, q)
			}
		case "99":
			tr, err := parseTrailer(rec)
			if err != nil {
				return nil, withLine(err, line)
			}
			if tr.TotalRecords != records {
				return nil, &ParseError{Line: line, Field: "TOTREG", Err: fmt.Errorf("%w: %d x %d", ErrTrailerCount, tr.TotalRecords, records)}
			}
			out.Trailer = &tr
		default:
			return nil, &ParseError{Line: line, Field: "TIPREG", Err: fmt.Errorf("tipo de registro desconhecido %q", string(rec[0:2]))}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return &out, nil
}

func withLine(err error, line int) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		pe.Line = line
		return pe
	}
	return &ParseError{Line: line, Err: err}
}

// Unzip abre o único .TXT dentro do ZIP diário (COTAHIST_Dddmmaaaa.ZIP).
func Unzip(data []byte) (io.ReadCloser, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("falha ao abrir zip: %w", err)
	}
	for _, f := range zr.File {
		if strings.HasSuffix(strings.ToUpper(f.Name), ".TXT") {
			return f.Open()
		}
	}
	return nil, errors.New("zip sem arquivo .TXT")
}

// ===== Campos =====

// field devolve as posições [from, to] (1-based, inclusivas) do layout.
func field(rec []rune, from, to int) string {
	return string(rec[from-1 : to])
}

func text(rec []rune, from, to int) string {
	return strings.TrimSpace(field(rec, from, to))
}

func integer(rec []rune, name string, from, to int) (int64, error) {
	s := strings.TrimSpace(field(rec, from, to))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &ParseError{Field: name, Err: err}
	}
	return n, nil
}

// implied lê um número com casas decimais implícitas, ex. (11)V99.
func implied(rec []rune, name string, from, to int, places int32) (decimal.Decimal, error) {
	n, err := integer(rec, name, from, to)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.New(n, -places), nil
}

func date(rec []rune, name string, from, to int) (time.Time, error) {
	s := text(rec, from, to)
	if s == "" || s == "00000000" || s == "99991231" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("20060102", s, brfmt.Location())
	if err != nil {
		return time.Time{}, &ParseError{Field: name, Err: err}
	}
	return t, nil
}

func parseHeader(rec []rune) (Header, error) {
	gen, err := date(rec, "DATGER", 24, 31)
	if err != nil {
		return Header{}, err
	}
	return Header{
		FileName:    text(rec, 3, 15),
		Origin:      text(rec, 16, 23),
		GeneratedAt: gen,
	}, nil
}

func parseTrailer(rec []rune) (Trailer, error) {
	gen, err := date(rec, "DATGER", 24, 31)
	if err != nil {
		return Trailer{}, err
	}
	total, err := integer(rec, "TOTREG", 32, 42)
	if err != nil {
		return Trailer{}, err
	}
	return Trailer{
		FileName:     text(rec, 3, 15),
		Origin:       text(rec, 16, 23),
		GeneratedAt:  gen,
		TotalRecords: total,
	}, nil
}

func parseQuote(rec []rune) (Quote, error) {
	var (
		q   Quote
		err error
	)
	// o primeiro erro interrompe o resto
	setDate := func(dst *time.Time, name string, from, to int) {
		if err == nil {
			*dst, err = date(rec, name, from, to)
		}
	}
	setDec := func(dst *decimal.Decimal, name string, from, to int, places int32) {
		if err == nil {
			*dst, err = implied(rec, name, from, to, places)
		}
	}
	setInt := func(dst *int64, name string, from, to int) {
		if err == nil {
			*dst, err = integer(rec, name, from, to)
		}
	}

	setDate(&q.Date, "DATA", 3, 10)
	q.BDICode = text(rec, 11, 12)
	q.Ticker = text(rec, 13, 24)
	var tpmerc int64
	setInt(&tpmerc, "TPMERC", 25, 27)
	q.MarketType = int(tpmerc)
	q.ShortName = text(rec, 28, 39)
	q.Specification = text(rec, 40, 49)
	q.TermDays = text(rec, 50, 52)
	q.Currency = text(rec, 53, 56)
	setDec(&q.Open, "PREABE", 57, 69, 2)
	setDec(&q.High, "PREMAX", 70, 82, 2)
	setDec(&q.Low, "PREMIN", 83, 95, 2)
	setDec(&q.Average, "PREMED", 96, 108, 2)
	setDec(&q.Close, "PREULT", 109, 121, 2)
	setDec(&q.BestBid, "PREOFC", 122, 134, 2)
	setDec(&q.BestAsk, "PREOFV", 135, 147, 2)
	setInt(&q.Trades, "TOTNEG", 148, 152)
	setInt(&q.Quantity, "QUATOT", 153, 170)
	setDec(&q.Volume, "VOLTOT", 171, 188, 2)
	setDec(&q.StrikePrice, "PREEXE", 189, 201, 2)
	q.StrikeIndex = text(rec, 202, 202)
	setDate(&q.Expiry, "DATVEN", 203, 210)
	setInt(&q.QuoteFactor, "FATCOT", 211, 217)
	setDec(&q.StrikePoints, "PTOEXE", 218, 230, 6)
	q.ISIN = text(rec, 231, 242)
	var dismes int64
	setInt(&dismes, "DISMES", 243, 245)
	q.DistributionNo = int(dismes)

	return q, err
}
