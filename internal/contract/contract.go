// Package contract converte os códigos de vencimento dos contratos futuros
// da B3 (F25, DI1N27, ...) em mês/ano e data de vencimento.
package contract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"consulta-di/internal/brfmt"
	"consulta-di/internal/calendar"
)

// DefaultRoot é a mercadoria DI1 (DI Futuro de um dia).
const DefaultRoot = "DI1"

// ErrBadCode indica um código de vencimento fora do padrão letra+ano.
var ErrBadCode = errors.New("código de vencimento inválido")

const monthLetters = "FGHJKMNQUVXZ"

// MonthCode devolve a letra de vencimento do mês (janeiro = 'F').
func MonthCode(m time.Month) byte {
	if m < time.January || m > time.December {
		return 0
	}
	return monthLetters[m-1]
}

// MonthFromCode é o inverso de MonthCode. Aceita minúsculas.
func MonthFromCode(c byte) (time.Month, bool) {
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	i := strings.IndexByte(monthLetters, c)
	if i < 0 {
		return 0, false
	}
	return time.Month(i + 1), true
}

// Maturity é o mês de vencimento de um contrato.
type Maturity struct {
	Year  int
	Month time.Month
}

// ParseMaturity aceita "F25" ou o ticker completo "DI1F25".
// O ano é sempre 2000 + os dois dígitos.
func ParseMaturity(code string) (Maturity, error) {
	s := strings.ToUpper(strings.TrimSpace(code))
	if len(s) > 3 {
		s = s[len(s)-3:]
	}
	if len(s) != 3 {
		return Maturity{}, fmt.Errorf("%w: %q", ErrBadCode, code)
	}
	month, ok := MonthFromCode(s[0])
	if !ok {
		return Maturity{}, fmt.Errorf("%w: %q", ErrBadCode, code)
	}
	yy, err := strconv.Atoi(s[1:])
	if err != nil || s[1] < '0' || s[1] > '9' {
		return Maturity{}, fmt.Errorf("%w: %q", ErrBadCode, code)
	}
	return Maturity{Year: 2000 + yy, Month: month}, nil
}

// MaturityLabel devolve "MM/AAAA" para um código de 3 caracteres e "" para
// qualquer outra coisa.
func MaturityLabel(code string) string {
	code = strings.TrimSpace(code)
	if len(code) != 3 {
		return ""
	}
	m, err := ParseMaturity(code)
	if err != nil {
		return ""
	}
	return m.Label()
}

// FromDate devolve o vencimento do mês de t.
func FromDate(t time.Time) Maturity {
	return Maturity{Year: t.Year(), Month: t.Month()}
}

// Label formata "MM/AAAA".
func (m Maturity) Label() string {
	return fmt.Sprintf("%02d/%d", int(m.Month), m.Year)
}

// Code formata "F25".
func (m Maturity) Code() string {
	return fmt.Sprintf("%c%02d", MonthCode(m.Month), m.Year%100)
}

// Ticker formata o código de negociação, ex. "DI1F25".
func (m Maturity) Ticker(root string) string {
	return root + m.Code()
}

func (m Maturity) String() string { return m.Code() }

// ExpiryDate é o primeiro dia útil do mês de vencimento.
func (m Maturity) ExpiryDate(cal *calendar.Calendar) time.Time {
	return cal.Adjust(brfmt.Date(m.Year, m.Month, 1))
}

// BusinessDaysTo conta os dias úteis entre ref e o vencimento.
func (m Maturity) BusinessDaysTo(cal *calendar.Calendar, ref time.Time) int {
	return cal.BusinessDaysBetween(ref, m.ExpiryDate(cal))
}
