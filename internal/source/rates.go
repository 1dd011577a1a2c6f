package source

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"consulta-di/internal/brfmt"
	"consulta-di/internal/frame"
)

const (
	DefaultRatesURL  = "https://sistemaswebb3-derivativos.b3.com.br/referenceRatesProxy/Search/GetReferenceRates"
	DefaultRatesType = "PRE"
)

// Colunas de saída das taxas referenciais.
const (
	ColMaturityDate = "DATA VENCIMENTO"
	ColCalendarDays = "DIAS CORRIDOS"
	ColBusinessDays = "DIAS ÚTEIS"
	ColRate252      = "TAXA 252"
	ColRate360      = "TAXA 360"
)

// RatesColumns é o esquema da curva DI x Pré.
var RatesColumns = []frame.Column{
	{Name: ColReferenceDate, Kind: frame.Date},
	{Name: ColMaturityDate, Kind: frame.Date},
	{Name: ColCalendarDays, Kind: frame.Integer},
	{Name: ColBusinessDays, Kind: frame.Integer},
	{Name: ColRate252, Kind: frame.Decimal},
	{Name: ColRate360, Kind: frame.Decimal},
}

// RatesOptions configura a fonte "taxas".
type RatesOptions struct {
	URL      string
	RateType string
}

// Rates consulta as taxas referenciais. O parâmetro vai no path como JSON
// em Base64, no padrão dos proxies sistemaswebb3 da B3.
type Rates struct {
	client Getter
	opts   RatesOptions
	log    *zap.Logger
}

// NewRates cria a fonte, completando opções vazias com os padrões.
func NewRates(client Getter, opts RatesOptions, log *zap.Logger) *Rates {
	if opts.URL == "" {
		opts.URL = DefaultRatesURL
	}
	if opts.RateType == "" {
		opts.RateType = DefaultRatesType
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Rates{client: client, opts: opts, log: log}
}

func (r *Rates) Name() string { return NameRates }

func (r *Rates) Schema() []frame.Column { return RatesColumns }

type ratesQuery struct {
	Language string `json:"language"`
	Date     string `json:"date"`
	RateType string `json:"rateType"`
}

// URL monta o endereço da consulta da data.
func (r *Rates) URL(date time.Time) (string, error) {
	payload, err := json.Marshal(ratesQuery{
		Language: "pt-br",
		Date:     brfmt.FormatISO(date),
		RateType: r.opts.RateType,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimRight(r.opts.URL, "/") + "/" + base64.StdEncoding.EncodeToString(payload), nil
}

// EvidenceURL é o endereço da consulta; vazio se a data não serializar.
func (r *Rates) EvidenceURL(date time.Time) string {
	u, err := r.URL(date)
	if err != nil {
		return ""
	}
	return u
}

// flexNumber aceita número JSON (10.65) ou string no formato brasileiro ("10,65").
type flexNumber struct {
	text   string
	number bool
}

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*n = flexNumber{}
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = flexNumber{text: s}
	default:
		*n = flexNumber{text: string(b), number: true}
	}
	return nil
}

func (n flexNumber) toDecimal() (decimal.Decimal, bool) {
	if n.number {
		d, err := decimal.NewFromString(n.text)
		return d, err == nil
	}
	return brfmt.ParseNumber(n.text)
}

func (n flexNumber) toInt() (int64, bool) {
	d, ok := n.toDecimal()
	if !ok || !d.Equal(d.Truncate(0)) {
		return 0, false
	}
	return d.IntPart(), true
}

type ratesResponse struct {
	Results []struct {
		CalendarDays flexNumber `json:"calendarDays"`
		BusinessDays flexNumber `json:"businessDays"`
		Rate252      flexNumber `json:"rate252"`
		Rate360      flexNumber `json:"rate360"`
	} `json:"results"`
}

func (r *Rates) Fetch(ctx context.Context, date time.Time) (*frame.Frame, error) {
	url, err := r.URL(date)
	if err != nil {
		return nil, wrap(NameRates, date, err)
	}
	body, err := r.client.Get(ctx, url, nil, "")
	if err != nil {
		return nil, wrap(NameRates, date, err)
	}
	f, err := parseRates(body, date)
	return f, wrap(NameRates, date, err)
}

func parseRates(body []byte, date time.Time) (*frame.Frame, error) {
	var resp ratesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: json: %v", ErrMalformed, err)
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("%w: nenhuma taxa publicada", ErrNoData)
	}

	f := frame.New(RatesColumns)
	for _, res := range resp.Results {
		row := make([]any, len(RatesColumns))
		row[0] = date
		if n, ok := res.CalendarDays.toInt(); ok {
			row[1] = brfmt.Day(date.AddDate(0, 0, int(n)))
			row[2] = n
		}
		if n, ok := res.BusinessDays.toInt(); ok {
			row[3] = n
		}
		if d, ok := res.Rate252.toDecimal(); ok {
			row[4] = d
		}
		if d, ok := res.Rate360.toDecimal(); ok {
			row[5] = d
		}
		if err := f.Append(row); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	return f, nil
}
