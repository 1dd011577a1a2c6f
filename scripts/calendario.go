package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"consulta-di/internal/brfmt"
	"consulta-di/internal/calendar"
	"consulta-di/internal/contract"
)

var weekdays = [...]string{"domingo", "segunda", "terça", "quarta", "quinta", "sexta", "sábado"}

var feriadosAno int

var feriadosCmd = &cobra.Command{
	Use:   "feriados",
	Short: "Lista os feriados de pregão de um ano",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		year := feriadosAno
		if year == 0 {
			year = brfmt.NowSP().Year()
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Feriados B3 %d\n", year)
		for _, h := range calendar.Holidays(year) {
			fmt.Fprintf(out, "  %s  %-8s  %s\n", brfmt.FormatDate(h.Date), weekdays[h.Date.Weekday()], h.Name)
		}
		return nil
	},
}

var vencimentoRef string

var vencimentoCmd = &cobra.Command{
	Use:   "vencimento CODIGO",
	Short: "Decodifica um vencimento (F25, DI1F25) e conta os dias úteis até ele",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := contract.ParseMaturity(args[0])
		if err != nil {
			return err
		}
		cal := calendar.New()

		ref := cal.PreviousBusinessDay(brfmt.NowSP())
		if vencimentoRef != "" {
			if ref, err = brfmt.ParseDate(vencimentoRef); err != nil {
				return err
			}
		}

		expiry := m.ExpiryDate(cal)
		calendarDays := int(expiry.Sub(ref).Round(24*time.Hour) / (24 * time.Hour))

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Contrato:      %s\n", m.Ticker(contract.DefaultRoot))
		fmt.Fprintf(out, "Mês/ano:       %s\n", m.Label())
		fmt.Fprintf(out, "Vencimento:    %s (%s)\n", brfmt.FormatDate(expiry), weekdays[expiry.Weekday()])
		fmt.Fprintf(out, "Referência:    %s\n", brfmt.FormatDate(ref))
		fmt.Fprintf(out, "Dias corridos: %d\n", calendarDays)
		fmt.Fprintf(out, "Dias úteis:    %d\n", m.BusinessDaysTo(cal, ref))
		return nil
	},
}

func init() {
	feriadosCmd.Flags().IntVar(&feriadosAno, "ano", 0, "ano (padrão: ano corrente)")
	vencimentoCmd.Flags().StringVar(&vencimentoRef, "referencia", "", "data de referência (padrão: último dia útil)")
}
