package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"consulta-di/internal/b3"
	"consulta-di/internal/contract"
	"consulta-di/internal/cotahist"
	"consulta-di/internal/frame"
)

const DefaultCotahistURL = "https://bvmf.bmfbovespa.com.br/InstDados/SerHist"

// Colunas de saída do COTAHIST.
const (
	ColTradeDate     = "DATA PREGÃO"
	ColTicker        = "CÓDIGO NEGOCIAÇÃO"
	ColShortName     = "NOME"
	ColSpecification = "ESPECIFICAÇÃO"
	ColMarketType    = "TIPO MERCADO"
	ColTrades        = "NEGOCIOS"
	ColQuantity      = "QUANTIDADE"
)

// CotahistColumns é o esquema das cotações do arquivo histórico.
var CotahistColumns = []frame.Column{
	{Name: ColTradeDate, Kind: frame.Date},
	{Name: ColTicker, Kind: frame.Text},
	{Name: ColMaturity, Kind: frame.Text},
	{Name: ColShortName, Kind: frame.Text},
	{Name: ColSpecification, Kind: frame.Text},
	{Name: ColMarketType, Kind: frame.Text},
	{Name: ColOpen, Kind: frame.Decimal},
	{Name: ColLow, Kind: frame.Decimal},
	{Name: ColHigh, Kind: frame.Decimal},
	{Name: ColAverage, Kind: frame.Decimal},
	{Name: ColLast, Kind: frame.Decimal},
	{Name: ColTrades, Kind: frame.Integer},
	{Name: ColQuantity, Kind: frame.Integer},
	{Name: ColVolume, Kind: frame.Decimal},
}

// marketTypes são os códigos TPMERC do layout.
var marketTypes = map[int]string{
	10: "VISTA",
	12: "EXERCÍCIO DE OPÇÕES DE COMPRA",
	13: "EXERCÍCIO DE OPÇÕES DE VENDA",
	17: "LEILÃO",
	20: "FRACIONÁRIO",
	30: "TERMO",
	50: "FUTURO COM RETENÇÃO DE GANHO",
	60: "FUTURO COM MOVIMENTAÇÃO CONTÍNUA",
	70: "OPÇÕES DE COMPRA",
	80: "OPÇÕES DE VENDA",
}

// MarketTypeName devolve o nome do mercado ou o código quando desconhecido.
func MarketTypeName(code int) string {
	if name, ok := marketTypes[code]; ok {
		return name
	}
	return fmt.Sprintf("%03d", code)
}

// CotahistOptions configura a fonte "cotahist".
type CotahistOptions struct {
	URL         string
	Prefixes    []string
	MarketTypes []int
}

// Cotahist baixa o COTAHIST diário (ZIP) e filtra as cotações.
type Cotahist struct {
	client Getter
	opts   CotahistOptions
	log    *zap.Logger
}

// NewCotahist cria a fonte, completando opções vazias com os padrões.
func NewCotahist(client Getter, opts CotahistOptions, log *zap.Logger) *Cotahist {
	if opts.URL == "" {
		opts.URL = DefaultCotahistURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Cotahist{client: client, opts: opts, log: log}
}

func (c *Cotahist) Name() string { return NameCotahist }

func (c *Cotahist) Schema() []frame.Column { return CotahistColumns }

// URL devolve o endereço do arquivo diário, ex. .../COTAHIST_D15012024.ZIP.
func (c *Cotahist) URL(date time.Time) string {
	return fmt.Sprintf("%s/COTAHIST_D%s.ZIP", strings.TrimRight(c.opts.URL, "/"), date.Format("02012006"))
}

// EvidenceURL é o próprio arquivo publicado.
func (c *Cotahist) EvidenceURL(date time.Time) string { return c.URL(date) }

func (c *Cotahist) Fetch(ctx context.Context, date time.Time) (*frame.Frame, error) {
	body, err := c.client.Get(ctx, c.URL(date), nil, "")
	if err != nil {
		var httpErr *b3.HTTPError
		if errors.As(err, &httpErr) && httpErr.NotFound() {
			err = fmt.Errorf("%w: arquivo não publicado (%v)", ErrNoData, err)
		}
		return nil, wrap(NameCotahist, date, err)
	}
	f, err := c.parse(body)
	return f, wrap(NameCotahist, date, err)
}

func (c *Cotahist) parse(body []byte) (*frame.Frame, error) {
	rc, err := cotahist.Unzip(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	defer rc.Close()

	file, err := cotahist.Parse(rc, cotahist.Filter{Prefixes: c.opts.Prefixes, MarketTypes: c.opts.MarketTypes})
	if err != nil {
		return nil, err
	}
	c.log.Debug("cotahist lido",
		zap.String("arquivo", file.Header.FileName),
		zap.Int("cotacoes", len(file.Quotes)))
	if len(file.Quotes) == 0 {
		return nil, fmt.Errorf("%w: nenhuma cotação para %v", ErrNoData, c.opts.Prefixes)
	}

	f := frame.New(CotahistColumns)
	for i := range file.Quotes {
		q := &file.Quotes[i]
		row := []any{
			q.Date,
			q.Ticker,
			maturityOf(q),
			q.ShortName,
			q.Specification,
			MarketTypeName(q.MarketType),
			q.Open,
			q.Low,
			q.High,
			q.Average,
			q.Close,
			q.Trades,
			q.Quantity,
			q.Volume,
		}
		if err := f.Append(row); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	return f, nil
}

// maturityOf devolve "MM/AAAA" para futuros (sufixo do ticker) e opções
// (DATVEN); vazio para o resto.
func maturityOf(q *cotahist.Quote) string {
	switch q.MarketType {
	case 50, 60:
		if len(q.Ticker) > 3 {
			return contract.MaturityLabel(q.Ticker[len(q.Ticker)-3:])
		}
	case 12, 13, 70, 80:
		if !q.Expiry.IsZero() {
			return contract.FromDate(q.Expiry).Label()
		}
	}
	return ""
}
