package main

import (
	"github.com/spf13/cobra"

	"consulta-di/internal/b3"
	"consulta-di/internal/calendar"
	"consulta-di/internal/server"
	"consulta-di/internal/source"
)

var servirAddr string

var servirCmd = &cobra.Command{
	Use:   "servir",
	Short: "Sobe o formulário web de consulta",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		addr := servirAddr
		if addr == "" {
			addr = cfg.Server.Addr
		}

		// um cliente para todas as requisições: cookies e limite de taxa compartilhados
		client := b3.NewClient(cfg.ClientOptions(logger))
		srv := server.New(server.Config{
			Addr: addr,
			Sources: func(name string, raw bool) (source.Source, error) {
				return newSource(client, name, raw)
			},
			DefaultSource: cfg.Sources.Default,
			Calendar:      calendar.New(),
			Export:        cfg.ExportOptions(),
			Prefix:        cfg.Output.Prefix,
			Logger:        logger,
		})
		return srv.Run(cmd.Context())
	},
}

func init() {
	servirCmd.Flags().StringVar(&servirAddr, "addr", "", "endereço de escuta (padrão da configuração)")
}
