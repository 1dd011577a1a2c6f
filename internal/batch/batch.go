// Package batch processa uma lista de datas contra uma fonte, uma data por vez.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"consulta-di/internal/brfmt"
	"consulta-di/internal/calendar"
	"consulta-di/internal/frame"
	"consulta-di/internal/source"
)

// Failure é uma data que falhou, com o motivo mostrado ao usuário.
type Failure struct {
	Date     time.Time `json:"-"`
	Day      string    `json:"data"`
	Reason   string    `json:"motivo"`
	Evidence string    `json:"evidencia,omitempty"`
}

// Link é a página pública de uma data consultada, para conferência.
type Link struct {
	Date time.Time `json:"-"`
	Day  string    `json:"data"`
	URL  string    `json:"url"`
}

// Result consolida a execução.
type Result struct {
	Frame     *frame.Frame
	Succeeded int
	NoData    []time.Time
	Failures  []Failure
	// Evidence tem um link por data efetivamente consultada.
	Evidence []Link
}

// Progress é chamado depois de cada data: done de total.
type Progress func(done, total int, date time.Time, status string)

// Runner busca data a data. Falhas não interrompem o lote.
type Runner struct {
	Source   source.Source
	Calendar *calendar.Calendar
	Logger   *zap.Logger
	// SkipNonBusiness pula fins de semana e feriados sem fazer a requisição.
	SkipNonBusiness bool
	OnProgress      Progress
}

// Run processa as datas na ordem dada. Só o cancelamento de ctx interrompe
// o lote; nesse caso o resultado parcial é devolvido junto com o erro.
func (r *Runner) Run(ctx context.Context, dates []time.Time) (*Result, error) {
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}
	cal := r.Calendar
	if cal == nil {
		cal = calendar.New()
	}

	log.Info("iniciando processamento",
		zap.String("fonte", r.Source.Name()),
		zap.Int("datas", len(dates)))

	res := &Result{}
	var frames []*frame.Frame
	for i, date := range dates {
		if err := ctx.Err(); err != nil {
			return r.finish(res, frames), err
		}

		day := brfmt.FormatDate(date)
		status := r.one(ctx, cal, date, res, &frames, log)
		if errors.Is(ctx.Err(), context.Canceled) {
			return r.finish(res, frames), ctx.Err()
		}
		if r.OnProgress != nil {
			r.OnProgress(i+1, len(dates), date, status)
		}
		log.Debug("data processada", zap.String("data", day), zap.String("status", status))
	}

	out := r.finish(res, frames)
	log.Info("processamento concluído",
		zap.Int("sucesso", out.Succeeded),
		zap.Int("sem_dados", len(out.NoData)),
		zap.Int("falhas", len(out.Failures)))
	return out, nil
}

func (r *Runner) one(ctx context.Context, cal *calendar.Calendar, date time.Time, res *Result, frames *[]*frame.Frame, log *zap.Logger) string {
	if r.SkipNonBusiness && !cal.IsBusinessDay(date) {
		res.NoData = append(res.NoData, date)
		reason := "fim de semana"
		if name, ok := cal.HolidayName(date); ok {
			reason = name
		}
		return fmt.Sprintf("Sem pregão (%s)", reason)
	}

	f, err := r.Source.Fetch(ctx, date)
	status := source.Status(err)
	url := source.EvidenceURL(r.Source, date)
	if url != "" {
		res.Evidence = append(res.Evidence, Link{Date: date, Day: brfmt.FormatDate(date), URL: url})
	}
	switch source.Classify(err) {
	case source.KindOK:
		*frames = append(*frames, f)
		res.Succeeded++
	case source.KindNoData:
		res.NoData = append(res.NoData, date)
	default:
		log.Warn("falha na data", zap.String("data", brfmt.FormatDate(date)), zap.Error(err))
		res.Failures = append(res.Failures, Failure{Date: date, Day: brfmt.FormatDate(date), Reason: status, Evidence: url})
	}
	return status
}

func (r *Runner) finish(res *Result, frames []*frame.Frame) *Result {
	if len(frames) == 0 {
		return res
	}
	// no modo bruto o layout pode mudar entre datas: vale o esquema da
	// primeira data e as demais viram falha
	f := frames[0]
	for _, other := range frames[1:] {
		merged, err := frame.Concat(f, other)
		if err != nil {
			d := firstDate(other)
			res.Failures = append(res.Failures, Failure{Date: d, Day: brfmt.FormatDate(d), Reason: source.Status(err)})
			res.Succeeded--
			continue
		}
		f = merged
	}
	res.Frame = f
	return res
}

func firstDate(f *frame.Frame) time.Time {
	if len(f.Rows) > 0 && len(f.Rows[0]) > 0 {
		if t, ok := f.Rows[0][0].(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}
