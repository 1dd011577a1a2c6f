// Package source reúne as estratégias de obtenção dos relatórios da B3.
// Cada fonte baixa o relatório de uma data e devolve um frame normalizado.
package source

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"consulta-di/internal/frame"
)

// Source obtém o relatório de uma data.
type Source interface {
	Name() string
	// Schema é o esquema de saída; nil quando depende do documento baixado.
	Schema() []frame.Column
	Fetch(ctx context.Context, date time.Time) (*frame.Frame, error)
}

// Evidencer é implementado pelas fontes que têm uma página pública para
// conferir o dado baixado.
type Evidencer interface {
	EvidenceURL(date time.Time) string
}

// EvidenceURL devolve o link de evidência de src para a data, ou "".
func EvidenceURL(src Source, date time.Time) string {
	if e, ok := src.(Evidencer); ok {
		return e.EvidenceURL(date)
	}
	return ""
}

// Getter é o que as fontes precisam do cliente HTTP (b3.Client).
type Getter interface {
	WarmUp(ctx context.Context, url string)
	Get(ctx context.Context, url string, query map[string]string, referer string) ([]byte, error)
}

// Nomes das fontes.
const (
	NameExcel    = "excel"
	NameRates    = "taxas"
	NameCotahist = "cotahist"
)

// Settings agrupa as opções de todas as fontes.
type Settings struct {
	Excel    ExcelOptions
	Rates    RatesOptions
	Cotahist CotahistOptions
}

// Names lista as fontes disponíveis.
func Names() []string {
	names := []string{NameExcel, NameRates, NameCotahist}
	sort.Strings(names)
	return names
}

// New cria a fonte pelo nome.
func New(name string, client Getter, s Settings, log *zap.Logger) (Source, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch name {
	case NameExcel:
		return NewExcel(client, s.Excel, log), nil
	case NameRates:
		return NewRates(client, s.Rates, log), nil
	case NameCotahist:
		return NewCotahist(client, s.Cotahist, log), nil
	}
	return nil, fmt.Errorf("%w: %q (use %v)", ErrUnknownSource, name, Names())
}
