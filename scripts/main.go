package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"consulta-di/internal/b3"
	"consulta-di/internal/config"
	"consulta-di/internal/source"
)

var (
	// Flags globais
	cfgPath string
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "consulta-di",
	Short: "Consulta o boletim de DI Futuro (DI1) da B3",
	Long: `Baixa o relatório de ajustes/preços do DI Futuro da B3 para uma data ou
uma lista de datas e consolida tudo numa planilha .xlsx.

Fontes:
  excel     relatório "Excel" do Sistema Pregão (HTML legado)
  taxas     taxas referenciais DI x Pré (JSON)
  cotahist  arquivo histórico COTAHIST (largura fixa)`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		zc := zap.NewProductionConfig()
		zc.Encoding = cfg.Logging.Format
		if zc.Encoding == "console" {
			zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
			zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		}
		level, _ := zap.ParseAtomicLevel(cfg.Logging.Level)
		zc.Level = level
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("falha ao iniciar logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath, "arquivo de configuração YAML")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log em nível debug")

	rootCmd.AddCommand(consultarCmd, feriadosCmd, vencimentoCmd, servirCmd)
}

// newSource cria a fonte pedida com as opções da configuração.
func newSource(client *b3.Client, name string, raw bool) (source.Source, error) {
	return source.New(name, client, cfg.SourceSettings(raw), logger)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "erro:", err)
		os.Exit(1)
	}
}
