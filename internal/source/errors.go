package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"consulta-di/internal/b3"
	"consulta-di/internal/brfmt"
	"consulta-di/internal/cotahist"
)

var (
	// ErrNoData indica que a B3 não tem o relatório da data (feriado, fim de
	// semana, pregão ainda não fechado). Não conta como falha.
	ErrNoData = errors.New("dados não encontrados")
	// ErrMalformed indica documento encontrado mas fora do layout esperado.
	ErrMalformed = errors.New("tabela mal formatada ou vazia")
	// ErrUnknownSource indica nome de fonte não registrado.
	ErrUnknownSource = errors.New("fonte desconhecida")
)

// FetchError associa o erro à fonte e à data consultada.
type FetchError struct {
	Source string
	Date   time.Time
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Source, brfmt.FormatDate(e.Date), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func wrap(src string, date time.Time, err error) error {
	if err == nil {
		return nil
	}
	return &FetchError{Source: src, Date: date, Err: err}
}

// Kind classifica o resultado de uma consulta.
type Kind int

const (
	KindOK Kind = iota
	KindNoData
	KindConnection
	KindParse
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindNoData:
		return "sem_dados"
	case KindConnection:
		return "conexao"
	case KindParse:
		return "processamento"
	default:
		return "inesperado"
	}
}

// Classify decide o Kind de err.
func Classify(err error) Kind {
	if err == nil {
		return KindOK
	}
	if errors.Is(err, ErrNoData) {
		return KindNoData
	}

	var (
		httpErr  *b3.HTTPError
		urlErr   *url.Error
		netErr   net.Error
		parseErr *cotahist.ParseError
		numErr   *strconv.NumError
	)
	switch {
	case errors.As(err, &httpErr), errors.As(err, &urlErr), errors.As(err, &netErr),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindConnection
	case errors.Is(err, ErrMalformed), errors.As(err, &parseErr), errors.As(err, &numErr),
		errors.Is(err, brfmt.ErrBadDate):
		return KindParse
	}
	return KindUnexpected
}

// Status devolve a mensagem mostrada ao usuário para o resultado de uma data.
func Status(err error) string {
	switch Classify(err) {
	case KindOK:
		return "Sucesso"
	case KindNoData:
		return fmt.Sprintf("Dados não encontrados. Provavelmente um feriado ou fim de semana. Detalhe: %v", err)
	case KindConnection:
		return fmt.Sprintf("Erro de conexão: %v", err)
	case KindParse:
		return fmt.Sprintf("Erro ao processar a tabela. Pode estar mal formatada ou vazia. Detalhe: %v", err)
	default:
		return fmt.Sprintf("Ocorreu um erro inesperado: %v", err)
	}
}
