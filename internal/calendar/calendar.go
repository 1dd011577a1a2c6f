// Package calendar implementa o calendário de feriados da B3.
//
// Os feriados móveis (Carnaval, Sexta-feira da Paixão e Corpus Christi) são
// derivados da Páscoa, calculada pela fórmula fechada de Meeus/Jones/Butcher.
// Todas as datas são normalizadas para meia-noite em America/Sao_Paulo.
package calendar

import (
	"sort"
	"sync"
	"time"

	"consulta-di/internal/brfmt"
)

// Holiday é um dia sem pregão.
type Holiday struct {
	Date time.Time `json:"data"`
	Name string    `json:"nome"`
}

// Calendar memoiza os feriados por ano. O valor zero não é utilizável; use New.
type Calendar struct {
	mu    sync.Mutex
	years map[int]map[time.Time]string
}

// New cria um calendário vazio.
func New() *Calendar {
	return &Calendar{years: make(map[int]map[time.Time]string)}
}

// Easter devolve o domingo de Páscoa do ano (calendário gregoriano).
func Easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return brfmt.Date(year, time.Month(month), day)
}

// Holidays lista os feriados de pregão do ano em ordem cronológica.
func Holidays(year int) []Holiday {
	easter := Easter(year)
	hs := []Holiday{
		{brfmt.Date(year, time.January, 1), "Confraternização Universal"},
		{easter.AddDate(0, 0, -48), "Carnaval"},
		{easter.AddDate(0, 0, -47), "Carnaval"},
		{easter.AddDate(0, 0, -2), "Sexta-feira da Paixão"},
		{brfmt.Date(year, time.April, 21), "Tiradentes"},
		{brfmt.Date(year, time.May, 1), "Dia do Trabalho"},
		{easter.AddDate(0, 0, 60), "Corpus Christi"},
		{brfmt.Date(year, time.September, 7), "Independência do Brasil"},
		{brfmt.Date(year, time.October, 12), "Nossa Senhora Aparecida"},
		{brfmt.Date(year, time.November, 2), "Finados"},
		{brfmt.Date(year, time.November, 15), "Proclamação da República"},
		{brfmt.Date(year, time.December, 25), "Natal"},
	}
	// Lei 14.759/2023
	if year >= 2024 {
		hs = append(hs, Holiday{brfmt.Date(year, time.November, 20), "Dia Nacional de Zumbi e da Consciência Negra"})
	}
	sort.SliceStable(hs, func(i, j int) bool { return hs[i].Date.Before(hs[j].Date) })
	return hs
}

func (c *Calendar) holidaySet(year int) map[time.Time]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if set, ok := c.years[year]; ok {
		return set
	}
	set := make(map[time.Time]string)
	for _, h := range Holidays(year) {
		set[h.Date] = h.Name
	}
	c.years[year] = set
	return set
}

// HolidayName devolve o nome do feriado em t, se houver.
func (c *Calendar) HolidayName(t time.Time) (string, bool) {
	d := brfmt.Day(t)
	name, ok := c.holidaySet(d.Year())[d]
	return name, ok
}

// IsHoliday informa se t cai em feriado.
func (c *Calendar) IsHoliday(t time.Time) bool {
	_, ok := c.HolidayName(t)
	return ok
}

// IsWeekend informa se t é sábado ou domingo.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsBusinessDay informa se há pregão em t.
func (c *Calendar) IsBusinessDay(t time.Time) bool {
	return !IsWeekend(t) && !c.IsHoliday(t)
}

// PreviousBusinessDay devolve o dia útil estritamente anterior a t.
func (c *Calendar) PreviousBusinessDay(t time.Time) time.Time {
	d := addDays(t, -1)
	for !c.IsBusinessDay(d) {
		d = addDays(d, -1)
	}
	return d
}

// NextBusinessDay devolve o dia útil estritamente posterior a t.
func (c *Calendar) NextBusinessDay(t time.Time) time.Time {
	d := addDays(t, 1)
	for !c.IsBusinessDay(d) {
		d = addDays(d, 1)
	}
	return d
}

// Adjust devolve t se for dia útil, senão o próximo dia útil.
func (c *Calendar) Adjust(t time.Time) time.Time {
	d := brfmt.Day(t)
	if c.IsBusinessDay(d) {
		return d
	}
	return c.NextBusinessDay(d)
}

// AddBusinessDays anda n dias úteis a partir de t (n pode ser negativo).
func (c *Calendar) AddBusinessDays(t time.Time, n int) time.Time {
	d := brfmt.Day(t)
	for ; n > 0; n-- {
		d = c.NextBusinessDay(d)
	}
	for ; n < 0; n++ {
		d = c.PreviousBusinessDay(d)
	}
	return d
}

// BusinessDaysBetween conta os dias úteis em [from, to). Negativo se to < from.
func (c *Calendar) BusinessDaysBetween(from, to time.Time) int {
	from, to = brfmt.Day(from), brfmt.Day(to)
	sign := 1
	if to.Before(from) {
		from, to = to, from
		sign = -1
	}
	n := 0
	for d := from; d.Before(to); d = addDays(d, 1) {
		if c.IsBusinessDay(d) {
			n++
		}
	}
	return sign * n
}

// addDays mantém a meia-noite mesmo nos dias de início do horário de verão.
func addDays(t time.Time, n int) time.Time {
	return brfmt.Day(t.AddDate(0, 0, n))
}
