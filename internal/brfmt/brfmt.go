// Package brfmt lida com os formatos textuais brasileiros usados pela B3:
// números com vírgula decimal, datas dd/mm/aaaa e o fuso de São Paulo.
package brfmt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var saoPaulo = loadSaoPaulo()

func loadSaoPaulo() *time.Location {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		// sem tzdata: B3 opera em UTC-3 desde o fim do horário de verão
		return time.FixedZone("BRT", -3*60*60)
	}
	return loc
}

// Location devolve o fuso America/Sao_Paulo.
func Location() *time.Location { return saoPaulo }

// NowSP é time.Now() no fuso de São Paulo, truncado em segundos.
func NowSP() time.Time {
	return time.Now().In(saoPaulo).Truncate(time.Second)
}

// Day normaliza t para meia-noite (São Paulo) do mesmo dia civil.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, saoPaulo)
}

// Date monta a meia-noite de São Paulo de uma data civil.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, saoPaulo)
}

// ===== Números =====

// ParseNumber interpreta "R$ 1.234,56", "10,65%" ou "1234.56".
// ok=false para vazio, "-" ou texto que não é número.
func ParseNumber(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "R$", "")
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	s = strings.ReplaceAll(s, "\u00a0", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" || s == "-" {
		return decimal.Decimal{}, false
	}

	switch {
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")  // milhar
		s = strings.ReplaceAll(s, ",", ".") // decimal
	case strings.Count(s, ".") > 1:
		// "1.234.567" só pode ser separador de milhar
		s = strings.ReplaceAll(s, ".", "")
	case isThousandsOnly(s):
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// "1.234" na planilha da B3 é milhar, nunca decimal com três casas.
func isThousandsOnly(s string) bool {
	i := strings.IndexByte(s, '.')
	if i <= 0 {
		return false
	}
	frac := s[i+1:]
	if len(frac) != 3 {
		return false
	}
	for _, c := range frac {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// ParseInt é ParseNumber restrito a inteiros.
func ParseInt(s string) (int64, bool) {
	d, ok := ParseNumber(s)
	if !ok || !d.Equal(d.Truncate(0)) {
		return 0, false
	}
	return d.IntPart(), true
}

// ===== Datas =====

// ErrBadDate indica texto que não corresponde a nenhum layout aceito.
var ErrBadDate = errors.New("data inválida")

var dateLayouts = []string{
	"02/01/2006",
	"2006-01-02",
	"20060102",
	"02-01-2006",
	"02.01.2006",
	"2/1/2006",
	"02/01/06",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
}

// ParseDate aceita dd/mm/aaaa, aaaa-mm-dd, aaaammdd e variações com hora.
// O resultado é sempre meia-noite em São Paulo.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.TrimPrefix(s, "\uFEFF"))
	if s == "" {
		return time.Time{}, ErrBadDate
	}

	// Se vier com timezone, tenta RFC3339 direto.
	if strings.Contains(s, "T") {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return Day(t.In(saoPaulo)), nil
		}
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, saoPaulo); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, s)
}

// FormatDate devolve dd/mm/aaaa.
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

// FormatISO devolve aaaa-mm-dd.
func FormatISO(t time.Time) string {
	return t.Format("2006-01-02")
}
