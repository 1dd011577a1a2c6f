// Package config carrega as configurações do consulta-di (YAML + variáveis
// de ambiente CONSULTA_DI_*).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"consulta-di/internal/b3"
	"consulta-di/internal/contract"
	"consulta-di/internal/export"
	"consulta-di/internal/source"
)

// DefaultPath é o arquivo lido quando --config não é informado.
const DefaultPath = "consulta-di.yaml"

// EnvPrefix prefixa as variáveis de ambiente aceitas.
const EnvPrefix = "CONSULTA_DI_"

// Config é a raiz do arquivo YAML.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Sources SourcesConfig `yaml:"sources"`
	Output  OutputConfig  `yaml:"output"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// HTTPConfig configura o cliente da B3.
type HTTPConfig struct {
	Timeout       string  `yaml:"timeout"` // duração Go, ex.: "15s"
	UserAgent     string  `yaml:"user_agent"`
	Impersonate   bool    `yaml:"impersonate"`
	RatePerSecond float64 `yaml:"rate_per_second"` // 0 = sem limite
	Retries       int     `yaml:"retries"`
}

// SourcesConfig agrupa as fontes.
type SourcesConfig struct {
	Default  string         `yaml:"default"`
	Excel    ExcelConfig    `yaml:"excel"`
	Rates    RatesConfig    `yaml:"taxas"`
	Cotahist CotahistConfig `yaml:"cotahist"`
}

type ExcelConfig struct {
	URL       string `yaml:"url"`
	WarmUpURL string `yaml:"warmup_url"`
	Commodity string `yaml:"mercadoria"`
}

type RatesConfig struct {
	URL      string `yaml:"url"`
	RateType string `yaml:"rate_type"`
}

type CotahistConfig struct {
	URL         string   `yaml:"url"`
	Prefixes    []string `yaml:"prefixes"`
	MarketTypes []int    `yaml:"market_types"`
}

// OutputConfig define onde e como a planilha é gravada.
type OutputConfig struct {
	Dir    string `yaml:"dir"`
	Sheet  string `yaml:"sheet"`
	Prefix string `yaml:"prefix"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configura o zap.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig devolve a configuração padrão.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:       "15s",
			Impersonate:   true,
			RatePerSecond: 2,
			Retries:       2,
		},
		Sources: SourcesConfig{
			Default: source.NameExcel,
			Excel: ExcelConfig{
				URL:       source.DefaultExcelURL,
				WarmUpURL: source.DefaultExcelWarmUpURL,
				Commodity: contract.DefaultRoot,
			},
			Rates: RatesConfig{
				URL:      source.DefaultRatesURL,
				RateType: source.DefaultRatesType,
			},
			Cotahist: CotahistConfig{
				URL: source.DefaultCotahistURL,
				// futuros e opções de DI negociados no segmento Bovespa
				Prefixes:    []string{"DI1"},
				MarketTypes: []int{50, 60, 70, 80},
			},
		},
		Output: OutputConfig{
			Dir:    ".",
			Sheet:  export.DefaultSheet,
			Prefix: export.DefaultPrefix,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load lê o YAML de path. Arquivo inexistente não é erro: valem os padrões.
// As variáveis de ambiente são aplicadas por último.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("falha ao ler configuração: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("falha ao interpretar configuração %s: %w", path, err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save grava a configuração em YAML, criando o diretório se preciso.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("falha ao criar diretório: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("falha ao serializar configuração: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("falha ao gravar configuração: %w", err)
	}
	return nil
}

// ApplyEnv sobrescreve campos com as variáveis CONSULTA_DI_*.
func (c *Config) ApplyEnv() error {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("HTTP_TIMEOUT", &c.HTTP.Timeout)
	str("HTTP_USER_AGENT", &c.HTTP.UserAgent)
	str("SOURCE", &c.Sources.Default)
	str("EXCEL_URL", &c.Sources.Excel.URL)
	str("EXCEL_WARMUP_URL", &c.Sources.Excel.WarmUpURL)
	str("EXCEL_MERCADORIA", &c.Sources.Excel.Commodity)
	str("TAXAS_URL", &c.Sources.Rates.URL)
	str("TAXAS_RATE_TYPE", &c.Sources.Rates.RateType)
	str("COTAHIST_URL", &c.Sources.Cotahist.URL)
	str("OUTPUT_DIR", &c.Output.Dir)
	str("OUTPUT_SHEET", &c.Output.Sheet)
	str("OUTPUT_PREFIX", &c.Output.Prefix)
	str("SERVER_ADDR", &c.Server.Addr)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)

	if v := os.Getenv(EnvPrefix + "HTTP_IMPERSONATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sHTTP_IMPERSONATE inválido: %w", EnvPrefix, err)
		}
		c.HTTP.Impersonate = b
	}
	if v := os.Getenv(EnvPrefix + "HTTP_RATE_PER_SECOND"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sHTTP_RATE_PER_SECOND inválido: %w", EnvPrefix, err)
		}
		c.HTTP.RatePerSecond = f
	}
	if v := os.Getenv(EnvPrefix + "HTTP_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sHTTP_RETRIES inválido: %w", EnvPrefix, err)
		}
		c.HTTP.Retries = n
	}
	if v := os.Getenv(EnvPrefix + "COTAHIST_PREFIXES"); v != "" {
		c.Sources.Cotahist.Prefixes = splitList(v)
	}
	if v := os.Getenv(EnvPrefix + "COTAHIST_MARKET_TYPES"); v != "" {
		var types []int
		for _, s := range splitList(v) {
			n, err := strconv.Atoi(s)
			if err != nil {
				return fmt.Errorf("%sCOTAHIST_MARKET_TYPES inválido: %w", EnvPrefix, err)
			}
			types = append(types, n)
		}
		c.Sources.Cotahist.MarketTypes = types
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate confere os valores que não têm como ser corrigidos em runtime.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.HTTP.Timeout); err != nil {
		return fmt.Errorf("http.timeout inválido %q: %w", c.HTTP.Timeout, err)
	}
	if c.HTTP.RatePerSecond < 0 {
		return fmt.Errorf("http.rate_per_second não pode ser negativo: %v", c.HTTP.RatePerSecond)
	}
	if c.HTTP.Retries < 0 {
		return fmt.Errorf("http.retries não pode ser negativo: %d", c.HTTP.Retries)
	}
	valid := false
	for _, n := range source.Names() {
		if c.Sources.Default == n {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("sources.default inválida: %q (use %v)", c.Sources.Default, source.Names())
	}
	if _, err := zap.ParseAtomicLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level inválido: %w", err)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format inválido: %q (use json ou console)", c.Logging.Format)
	}
	return nil
}

// GetTimeout devolve http.timeout como duração.
func (c *Config) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.HTTP.Timeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// ClientOptions monta as opções do cliente da B3.
func (c *Config) ClientOptions(log *zap.Logger) b3.Options {
	return b3.Options{
		Timeout:       c.GetTimeout(),
		UserAgent:     c.HTTP.UserAgent,
		Impersonate:   c.HTTP.Impersonate,
		RatePerSecond: c.HTTP.RatePerSecond,
		Retries:       c.HTTP.Retries,
		Logger:        log,
	}
}

// SourceSettings monta as opções das fontes. raw liga o modo bruto do Excel.
func (c *Config) SourceSettings(raw bool) source.Settings {
	return source.Settings{
		Excel: source.ExcelOptions{
			URL:       c.Sources.Excel.URL,
			WarmUpURL: c.Sources.Excel.WarmUpURL,
			Commodity: c.Sources.Excel.Commodity,
			Raw:       raw,
		},
		Rates: source.RatesOptions{
			URL:      c.Sources.Rates.URL,
			RateType: c.Sources.Rates.RateType,
		},
		Cotahist: source.CotahistOptions{
			URL:         c.Sources.Cotahist.URL,
			Prefixes:    c.Sources.Cotahist.Prefixes,
			MarketTypes: c.Sources.Cotahist.MarketTypes,
		},
	}
}

// ExportOptions devolve as opções da planilha.
func (c *Config) ExportOptions() export.Options {
	return export.Options{Sheet: c.Output.Sheet}
}
