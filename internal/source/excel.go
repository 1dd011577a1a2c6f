package source

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"consulta-di/internal/brfmt"
	"consulta-di/internal/contract"
	"consulta-di/internal/frame"
	"consulta-di/internal/table"
)

const (
	DefaultExcelURL       = "https://www2.bmf.com.br/pages/portal/bmfbovespa/boletim1/SistemaPregao_excel1.asp"
	DefaultExcelWarmUpURL = "https://www2.bmf.com.br/pages/portal/bmfbovespa/boletim1/SistemaPregao1.asp"

	// a tabela de contratos é a 7ª do documento
	contractTableIndex = 6
)

// Colunas de saída do "Excel" legado.
const (
	ColReferenceDate = "DATA REFERÊNCIA"
	ColMaturity      = "MÊS/ANO VENCIMENTO"
	ColMaturityCode  = "VENCIMENTO"
	ColOpenContracts = "CONTRATOS EM ABERTO"
	ColVolume        = "VOLUME"
	ColOpen          = "PRECO ABERTURA"
	ColLow           = "PRECO MINIMO"
	ColHigh          = "PRECO MAXIMO"
	ColAverage       = "PRECO MEDIO"
	ColLast          = "ULTIMO PRECO"
	ColSettlement    = "PRECO AJUSTE"
)

// ExcelColumns é o esquema normalizado da tabela de DI Futuro.
var ExcelColumns = []frame.Column{
	{Name: ColReferenceDate, Kind: frame.Date},
	{Name: ColMaturity, Kind: frame.Text},
	{Name: ColOpenContracts, Kind: frame.Integer},
	{Name: ColVolume, Kind: frame.Integer},
	{Name: ColOpen, Kind: frame.Decimal},
	{Name: ColLow, Kind: frame.Decimal},
	{Name: ColHigh, Kind: frame.Decimal},
	{Name: ColAverage, Kind: frame.Decimal},
	{Name: ColLast, Kind: frame.Decimal},
}

// excelRenames traduz o cabeçalho publicado para os nomes de saída.
var excelRenames = map[string]string{
	"VENC.":            ColMaturityCode,
	"CONTR. ABERT.(1)": ColOpenContracts,
	"VOL.":             ColVolume,
	"PREÇO ABERTU.":    ColOpen,
	"PREÇO MÍN.":       ColLow,
	"PREÇO MÁX.":       ColHigh,
	"PREÇO MÉD.":       ColAverage,
	"ÚLT. PREÇO":       ColLast,
	"AJUSTE":           ColSettlement,
}

// ExcelOptions configura a fonte "excel".
type ExcelOptions struct {
	URL       string
	WarmUpURL string
	Commodity string
	// Raw mantém a tabela como publicada, só com a data de referência na frente.
	Raw bool
}

// Excel baixa o "Excel" do Sistema Pregão (HTML em Latin-1) e extrai a
// tabela de contratos.
type Excel struct {
	client Getter
	opts   ExcelOptions
	log    *zap.Logger
}

// NewExcel cria a fonte, completando opções vazias com os padrões.
func NewExcel(client Getter, opts ExcelOptions, log *zap.Logger) *Excel {
	if opts.URL == "" {
		opts.URL = DefaultExcelURL
	}
	if opts.WarmUpURL == "" {
		opts.WarmUpURL = DefaultExcelWarmUpURL
	}
	if opts.Commodity == "" {
		opts.Commodity = contract.DefaultRoot
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Excel{client: client, opts: opts, log: log}
}

func (e *Excel) Name() string { return NameExcel }

func (e *Excel) Schema() []frame.Column {
	if e.opts.Raw {
		return nil
	}
	return ExcelColumns
}

// URL devolve o endereço consultado para a data.
func (e *Excel) URL(date time.Time) string {
	return e.EvidenceURL(date) + "&XLS=true"
}

// EvidenceURL é a mesma página em HTML, para conferência no navegador.
func (e *Excel) EvidenceURL(date time.Time) string {
	return fmt.Sprintf("%s?Data=%s&Mercadoria=%s", e.opts.URL, brfmt.FormatDate(date), e.opts.Commodity)
}

func (e *Excel) Fetch(ctx context.Context, date time.Time) (*frame.Frame, error) {
	// Primeiro, acessar a página inicial para capturar cookies
	e.client.WarmUp(ctx, e.opts.WarmUpURL)

	body, err := e.client.Get(ctx, e.opts.URL, map[string]string{
		"Data":       brfmt.FormatDate(date),
		"Mercadoria": e.opts.Commodity,
		"XLS":        "true",
	}, e.opts.WarmUpURL)
	if err != nil {
		return nil, wrap(NameExcel, date, err)
	}

	f, err := e.parse(body, date)
	return f, wrap(NameExcel, date, err)
}

func (e *Excel) parse(body []byte, date time.Time) (*frame.Frame, error) {
	tables, err := table.ExtractTables(table.DecodeLatin1(bytes.NewReader(body)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	e.log.Debug("tabelas encontradas", zap.Int("total", len(tables)))
	if len(tables) <= contractTableIndex {
		return nil, fmt.Errorf("%w: tabela %d ausente", ErrNoData, contractTableIndex+1)
	}

	raw := tables[contractTableIndex]
	if len(raw.Rows) < 2 {
		return nil, fmt.Errorf("%w: tabela %d com %d linhas", ErrMalformed, contractTableIndex+1, len(raw.Rows))
	}

	// Usar a segunda linha como cabeçalho real e remover a primeira
	raw.Pad()
	raw.PromoteHeader(1)
	raw.DropTrailingBlank()
	if len(raw.Rows) == 0 {
		return nil, fmt.Errorf("%w: tabela %d sem contratos", ErrMalformed, contractTableIndex+1)
	}

	if e.opts.Raw {
		return rawFrame(&raw, date)
	}
	raw.Rename(excelRenames)
	return normalizeExcel(&raw, date)
}

// rawFrame devolve a tabela publicada, com todas as colunas como texto.
func rawFrame(raw *table.Raw, date time.Time) (*frame.Frame, error) {
	cols := []frame.Column{{Name: ColReferenceDate, Kind: frame.Date}}
	for i, h := range raw.Header {
		if strings.TrimSpace(h) == "" {
			h = fmt.Sprintf("COLUNA %d", i+1)
		}
		cols = append(cols, frame.Column{Name: h, Kind: frame.Text})
	}

	f := frame.New(cols)
	for _, r := range raw.Rows {
		row := make([]any, 0, len(cols))
		row = append(row, date)
		for _, c := range r {
			row = append(row, c)
		}
		if err := f.Append(row); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	return f, nil
}

func normalizeExcel(raw *table.Raw, date time.Time) (*frame.Frame, error) {
	codeIdx := raw.Index(ColMaturityCode)
	if codeIdx < 0 {
		// sem VENC. no cabeçalho, o código vem na primeira coluna
		codeIdx = 0
	}

	idx := make([]int, len(ExcelColumns))
	for i, c := range ExcelColumns {
		idx[i] = raw.Index(c.Name)
	}

	f := frame.New(ExcelColumns)
	for i := range raw.Rows {
		row := make([]any, len(ExcelColumns))
		for j, c := range ExcelColumns {
			switch c.Name {
			case ColReferenceDate:
				row[j] = date
			case ColMaturity:
				row[j] = contract.MaturityLabel(raw.Cell(i, codeIdx))
			default:
				if idx[j] >= 0 {
					row[j] = convert(c.Kind, raw.Cell(i, idx[j]))
				}
			}
		}
		if err := f.Append(row); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	return f, nil
}

// convert aplica o tipo da coluna; valores que não convertem viram nil.
func convert(k frame.Kind, s string) any {
	switch k {
	case frame.Integer:
		if n, ok := brfmt.ParseInt(s); ok {
			return n
		}
		return nil
	case frame.Decimal:
		if d, ok := brfmt.ParseNumber(s); ok {
			return d
		}
		return nil
	case frame.Date:
		if t, err := brfmt.ParseDate(s); err == nil {
			return t
		}
		return nil
	}
	return s
}
