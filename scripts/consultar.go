package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"consulta-di/internal/b3"
	"consulta-di/internal/batch"
	"consulta-di/internal/brfmt"
	"consulta-di/internal/calendar"
	"consulta-di/internal/datelist"
	"consulta-di/internal/export"
	"consulta-di/internal/frame"
	"consulta-di/internal/source"
)

var consultarFlags struct {
	date     string
	file     string
	source   string
	raw      bool
	outDir   string
	format   string
	contains string
	skipDays bool
}

var consultarCmd = &cobra.Command{
	Use:   "consultar",
	Short: "Baixa o boletim de uma data ou de uma lista de datas",
	Long: `Baixa o relatório da fonte escolhida para cada data e grava um único
arquivo consolidado. Sem --data nem --arquivo, consulta o último dia útil.

Exemplos:
  consulta-di consultar --data 15/01/2024
  consulta-di consultar --arquivo datas.csv --fonte taxas
  consulta-di consultar --data 15/01/2024 --formato json --contem 2025`,
	Args: cobra.NoArgs,
	RunE: runConsultar,
}

func init() {
	f := consultarCmd.Flags()
	f.StringVarP(&consultarFlags.date, "data", "d", "", "data do pregão (dd/mm/aaaa)")
	f.StringVarP(&consultarFlags.file, "arquivo", "a", "", "arquivo CSV/XLS/XLSX com a coluna 'Data'")
	f.StringVarP(&consultarFlags.source, "fonte", "f", "", "fonte: excel, taxas ou cotahist (padrão da configuração)")
	f.BoolVar(&consultarFlags.raw, "bruto", false, "mantém a tabela do Excel como publicada")
	f.StringVarP(&consultarFlags.outDir, "saida", "o", "", "pasta de saída (padrão da configuração)")
	f.StringVar(&consultarFlags.format, "formato", "xlsx", "formato de saída: xlsx ou json")
	f.StringVar(&consultarFlags.contains, "contem", "", "filtra linhas cujo vencimento contém esse texto")
	f.BoolVar(&consultarFlags.skipDays, "pular-feriados", false, "não consulta fins de semana e feriados")
	consultarCmd.MarkFlagsMutuallyExclusive("data", "arquivo")
}

func runConsultar(cmd *cobra.Command, _ []string) error {
	flags := consultarFlags
	if flags.format != "xlsx" && flags.format != "json" {
		return fmt.Errorf("formato inválido: %q (use xlsx ou json)", flags.format)
	}
	cal := calendar.New()

	dates, err := resolveDates(cal, flags.date, flags.file)
	if err != nil {
		return err
	}

	name := flags.source
	if name == "" {
		name = cfg.Sources.Default
	}
	client := b3.NewClient(cfg.ClientOptions(logger))
	src, err := newSource(client, name, flags.raw)
	if err != nil {
		return err
	}

	out := cmd.ErrOrStderr()
	runner := &batch.Runner{
		Source:          src,
		Calendar:        cal,
		Logger:          logger,
		SkipNonBusiness: flags.skipDays,
		OnProgress: func(done, total int, date time.Time, status string) {
			fmt.Fprintf(out, "[%d/%d] %s: %s\n", done, total, brfmt.FormatDate(date), status)
		},
	}
	res, err := runner.Run(cmd.Context(), dates)
	if err != nil {
		return err
	}
	printFailures(out, res.Failures)
	printEvidence(out, res.Evidence)

	if res.Frame == nil {
		return errors.New("nenhum dado foi extraído para as datas informadas")
	}
	result := res.Frame
	if flags.contains != "" {
		result = filterContains(result, flags.contains)
	}
	printPreview(cmd.OutOrStdout(), result, previewRows)

	dir := flags.outDir
	if dir == "" {
		dir = cfg.Output.Dir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("erro criando pasta de saída: %w", err)
	}

	now := brfmt.NowSP()
	fileName := export.FileName(cfg.Output.Prefix, dates, now)
	if flags.format == "json" {
		fileName = strings.TrimSuffix(fileName, ".xlsx") + ".json"
	}
	outPath := filepath.Join(dir, fileName)

	if flags.format == "json" {
		err = writeJSONFile(outPath, payloadFor(result, src.Name(), now, res))
	} else {
		err = writeXLSXFile(outPath, result)
	}
	if err != nil {
		return err
	}

	logger.Info("arquivo gravado", zap.String("caminho", outPath), zap.Int("linhas", result.Len()))
	fmt.Fprintf(cmd.OutOrStdout(), "Salvou em %s (%d linhas, %d de %d datas)\n",
		outPath, result.Len(), res.Succeeded, len(dates))
	return nil
}

// resolveDates decide as datas a consultar: arquivo, data única ou o
// último dia útil antes de hoje.
func resolveDates(cal *calendar.Calendar, date, file string) ([]time.Time, error) {
	switch {
	case file != "":
		dates, err := datelist.Read(file)
		if err != nil {
			return nil, fmt.Errorf("erro ao ler %s: %w", file, err)
		}
		if len(dates) == 0 {
			return nil, fmt.Errorf("nenhuma data válida em %s", file)
		}
		return dates, nil
	case date != "":
		d, err := brfmt.ParseDate(date)
		if err != nil {
			return nil, err
		}
		return []time.Time{d}, nil
	}
	return []time.Time{cal.PreviousBusinessDay(brfmt.NowSP())}, nil
}

func printFailures(w io.Writer, failures []batch.Failure) {
	if len(failures) == 0 {
		return
	}
	fmt.Fprintf(w, "%d data(s) com falha:\n", len(failures))
	for _, f := range failures {
		fmt.Fprintf(w, "  %s: %s\n", f.Day, f.Reason)
	}
}

// printEvidence lista as páginas da B3 para conferir cada data consultada.
func printEvidence(w io.Writer, links []batch.Link) {
	if len(links) == 0 {
		return
	}
	fmt.Fprintln(w, "Evidência (acesse o site para conferir):")
	for _, l := range links {
		fmt.Fprintf(w, "  %s: %s\n", l.Day, l.URL)
	}
}

// ===== Amostra =====

const previewRows = 5

// printPreview mostra as primeiras n linhas do consolidado.
func printPreview(w io.Writer, f *frame.Frame, n int) {
	head := f.Head(n)
	fmt.Fprintf(w, "Amostra dos dados consolidados (%d de %d linhas):\n", head.Len(), f.Len())
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(head.Names(), "\t"))
	for _, row := range head.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = cellText(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
}

func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case time.Time:
		return brfmt.FormatDate(x)
	case decimal.Decimal:
		return x.String()
	case string:
		return x
	}
	return fmt.Sprint(v)
}

func writeXLSXFile(path string, f *frame.Frame) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("erro criando %s: %w", path, err)
	}
	if err := export.Write(file, f, cfg.ExportOptions()); err != nil {
		file.Close()
		return fmt.Errorf("erro gravando planilha: %w", err)
	}
	return file.Close()
}

// ===== Saída JSON =====

type Meta struct {
	Source      string          `json:"fonte"`
	GeneratedAt string          `json:"gerado_em"`
	Rows        int             `json:"linhas"`
	Dates       int             `json:"datas_com_dados"`
	Failures    []batch.Failure `json:"falhas,omitempty"`
}

type Payload struct {
	Meta Meta             `json:"meta"`
	Data []map[string]any `json:"dados"`
}

func payloadFor(f *frame.Frame, src string, now time.Time, res *batch.Result) Payload {
	data := make([]map[string]any, 0, f.Len())
	for _, row := range f.Rows {
		m := make(map[string]any, len(row))
		for i, col := range f.Columns {
			v := row[i]
			if t, ok := v.(time.Time); ok {
				v = brfmt.FormatISO(t)
			}
			m[col.Name] = v
		}
		data = append(data, m)
	}
	return Payload{
		Meta: Meta{
			Source:      src,
			GeneratedAt: now.Truncate(time.Second).Format(time.RFC3339),
			Rows:        len(data),
			Dates:       res.Succeeded,
			Failures:    res.Failures,
		},
		Data: data,
	}
}

func writeJSONFile(path string, p Payload) error {
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("erro marshal json: %w", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("erro salvando json: %w", err)
	}
	return nil
}

// ===== Helpers: filtering =====

// filterContains mantém as linhas cujo vencimento contém substr
// (sem diferenciar maiúsculas). Sem coluna de vencimento, nada é filtrado.
func filterContains(f *frame.Frame, substr string) *frame.Frame {
	substr = strings.ToLower(strings.TrimSpace(substr))
	if substr == "" {
		return f
	}
	idx := -1
	for _, name := range []string{source.ColMaturity, source.ColMaturityCode, source.ColMaturityDate, source.ColTicker} {
		if idx = f.Index(name); idx >= 0 {
			break
		}
	}
	if idx < 0 {
		return f
	}

	out := frame.New(f.Columns)
	for _, row := range f.Rows {
		v := row[idx]
		text := ""
		switch x := v.(type) {
		case string:
			text = x
		case time.Time:
			text = brfmt.FormatDate(x)
		}
		if strings.Contains(strings.ToLower(text), substr) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}
