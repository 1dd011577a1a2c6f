// Package server expõe a consulta pela web: um formulário simples, o
// download da planilha e a lista de feriados.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"consulta-di/internal/batch"
	"consulta-di/internal/brfmt"
	"consulta-di/internal/calendar"
	"consulta-di/internal/datelist"
	"consulta-di/internal/export"
	"consulta-di/internal/source"
)

// maxUpload limita o arquivo de datas enviado.
const maxUpload = 10 << 20

// SourceFactory cria a fonte pedida; raw liga o modo bruto.
type SourceFactory func(name string, raw bool) (source.Source, error)

// Config reúne as dependências do servidor.
type Config struct {
	Addr          string
	Sources       SourceFactory
	DefaultSource string
	Calendar      *calendar.Calendar
	Export        export.Options
	Prefix        string
	Logger        *zap.Logger
	// Now substitui o relógio nos testes.
	Now func() time.Time
}

type Server struct {
	cfg Config
	log *zap.Logger
	mux *http.ServeMux
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Calendar == nil {
		cfg.Calendar = calendar.New()
	}
	if cfg.Now == nil {
		cfg.Now = brfmt.NowSP
	}
	if cfg.DefaultSource == "" {
		cfg.DefaultSource = source.NameExcel
	}

	s := &Server{cfg: cfg, log: cfg.Logger, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /consulta", s.handleQuery)
	s.mux.HandleFunc("POST /consulta", s.handleQuery)
	s.mux.HandleFunc("GET /feriados", s.handleHolidays)
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

// Run atende em cfg.Addr até ctx ser cancelado.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:        s.cfg.Addr,
		Handler:     s.mux,
		ReadTimeout: 30 * time.Second,
		// um lote grande de datas pode levar minutos
		WriteTimeout: 30 * time.Minute,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("servidor no ar", zap.String("addr", s.cfg.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			return err
		}
		return nil
	}
}

// ===== Formulário =====

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head><meta charset="utf-8"><title>Consulta DI Futuro - B3</title></head>
<body>
<h1>Consulta DI Futuro</h1>
<form action="/consulta" method="post" enctype="multipart/form-data">
  <p><label>Data <input name="data" value="{{.Date}}" placeholder="dd/mm/aaaa"></label></p>
  <p><label>ou lista de datas (CSV, XLS, XLSX com coluna "Data") <input type="file" name="arquivo"></label></p>
  <p><label>Fonte <select name="fonte">
  {{range .Sources}}<option value="{{.}}"{{if eq . $.Default}} selected{{end}}>{{.}}</option>
  {{end}}</select></label></p>
  <p><label><input type="checkbox" name="bruto" value="1"> tabela como publicada</label></p>
  <p><button type="submit">Consultar</button></p>
</form>
</body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Date    string
		Sources []string
		Default string
	}{
		Date:    brfmt.FormatDate(s.cfg.Calendar.PreviousBusinessDay(s.cfg.Now())),
		Sources: source.Names(),
		Default: s.cfg.DefaultSource,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := indexTmpl.Execute(w, data); err != nil {
		s.log.Error("falha ao renderizar formulário", zap.Error(err))
	}
}

// ===== Consulta =====

type failureReport struct {
	Error    string          `json:"erro"`
	Failures []batch.Failure `json:"falhas"`
	NoData   []string        `json:"sem_dados"`
	Evidence []batch.Link    `json:"evidencias"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	dates, err := s.requestDates(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	name := r.FormValue("fonte")
	if name == "" {
		name = s.cfg.DefaultSource
	}
	raw := isTrue(r.FormValue("bruto"))
	src, err := s.cfg.Sources(name, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	runner := &batch.Runner{Source: src, Calendar: s.cfg.Calendar, Logger: s.log}
	res, err := runner.Run(r.Context(), dates)
	if err != nil {
		// cliente desistiu
		s.log.Warn("consulta interrompida", zap.Error(err))
		return
	}

	if res.Frame == nil {
		report := failureReport{
			Error:    "Nenhum dado foi extraído para as datas informadas.",
			Failures: res.Failures,
			Evidence: res.Evidence,
		}
		for _, d := range res.NoData {
			report.NoData = append(report.NoData, brfmt.FormatDate(d))
		}
		writeJSON(w, http.StatusUnprocessableEntity, report)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, res.Frame, s.cfg.Export); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	fileName := export.FileName(s.cfg.Prefix, dates, s.cfg.Now())
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Datas-Sucesso", strconv.Itoa(res.Succeeded))
	w.Header().Set("X-Datas-Falha", strconv.Itoa(len(res.Failures)))
	for _, l := range res.Evidence {
		w.Header().Add("X-Evidencia", l.Day+" "+l.URL)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.log.Warn("falha ao enviar planilha", zap.Error(err))
	}
}

// requestDates lê o arquivo "arquivo" (POST multipart) ou o campo "data".
func (s *Server) requestDates(r *http.Request) ([]time.Time, error) {
	if r.Method == http.MethodPost && strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(maxUpload); err != nil {
			return nil, fmt.Errorf("formulário inválido: %w", err)
		}
		file, hdr, err := r.FormFile("arquivo")
		switch {
		case err == nil:
			defer file.Close()
			dates, err := datelist.ReadFrom(hdr.Filename, file)
			if err != nil {
				return nil, err
			}
			if len(dates) == 0 {
				return nil, errors.New("nenhuma data válida no arquivo")
			}
			return dates, nil
		case !errors.Is(err, http.ErrMissingFile):
			return nil, err
		}
	}

	raw := strings.TrimSpace(r.FormValue("data"))
	if raw == "" {
		return nil, errors.New("informe a data (dd/mm/aaaa) ou envie um arquivo com a coluna 'Data'")
	}
	d, err := brfmt.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return []time.Time{d}, nil
}

// ===== Feriados =====

type holidaysResponse struct {
	Year     int                `json:"ano"`
	Holidays []calendar.Holiday `json:"feriados"`
}

func (s *Server) handleHolidays(w http.ResponseWriter, r *http.Request) {
	year := s.cfg.Now().Year()
	if v := r.URL.Query().Get("ano"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1900 || n > 2199 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("ano inválido: %q", v))
			return
		}
		year = n
	}
	writeJSON(w, http.StatusOK, holidaysResponse{Year: year, Holidays: calendar.Holidays(year)})
}

// ===== Helpers =====

func isTrue(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b || v == "on"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"erro": err.Error()})
}
