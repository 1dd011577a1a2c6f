// Package b3 é o cliente HTTP usado para falar com os sites da B3/BM&F.
package b3

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/imroc/req/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPError é uma resposta fora da faixa 2xx.
type HTTPError struct {
	Status int
	URL    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d ao buscar %s", e.Status, e.URL)
}

// NotFound informa se o servidor respondeu 404.
func (e *HTTPError) NotFound() bool { return e.Status == http.StatusNotFound }

// Options configura o cliente.
type Options struct {
	Timeout       time.Duration
	UserAgent     string
	Impersonate   bool
	RatePerSecond float64
	Retries       int
	Logger        *zap.Logger
}

// Client embrulha um req.Client com cookies, limite de taxa e warm-up.
type Client struct {
	c      *req.Client
	log    *zap.Logger
	mu     sync.Mutex
	warmed map[string]bool
}

// NewClient monta o cliente no mesmo molde do script do Tesouro Direto:
// navegador comum impersonado, timeout curto e cabeçalhos de navegador.
func NewClient(opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	c := req.C()
	if opts.Impersonate {
		// Impersona um browser comum (Chrome recente)
		c.ImpersonateChrome()
	}
	if opts.UserAgent != "" {
		c.SetUserAgent(opts.UserAgent)
	}
	if opts.Timeout > 0 {
		c.SetTimeout(opts.Timeout)
	}
	// O "Excel" da BM&F vem em Latin-1 sem charset declarado; quem decodifica
	// é o parser.
	c.DisableAutoDecode()
	c.SetCommonHeaders(map[string]string{
		"Accept":          "text/html,application/json;q=0.9,*/*;q=0.8",
		"Accept-Language": "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7",
		"Cache-Control":   "no-cache",
	})
	if opts.Retries > 0 {
		c.SetCommonRetryCount(opts.Retries).
			SetCommonRetryBackoffInterval(500*time.Millisecond, 5*time.Second)
	}
	if opts.RatePerSecond > 0 {
		limiter := rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
		c.OnBeforeRequest(func(_ *req.Client, r *req.Request) error {
			return limiter.Wait(r.Context())
		})
	}

	return &Client{c: c, log: log, warmed: make(map[string]bool)}
}

// WarmUp visita a página uma vez por cliente para ganhar cookies/sessão.
// Falhas são só registradas: o download pode funcionar mesmo assim.
func (c *Client) WarmUp(ctx context.Context, url string) {
	if url == "" {
		return
	}
	c.mu.Lock()
	done := c.warmed[url]
	c.warmed[url] = true
	c.mu.Unlock()
	if done {
		return
	}

	resp, err := c.c.R().
		SetContext(ctx).
		SetHeader("Accept", "text/html,*/*;q=0.8").
		Get(url)
	if err != nil {
		c.log.Debug("warm-up falhou", zap.String("url", url), zap.Error(err))
		return
	}
	c.log.Debug("warm-up", zap.String("url", url), zap.Int("status", resp.GetStatusCode()))
}

// Get baixa url com os parâmetros de query e devolve o corpo.
func (c *Client) Get(ctx context.Context, url string, query map[string]string, referer string) ([]byte, error) {
	r := c.c.R().SetContext(ctx)
	if len(query) > 0 {
		r.SetQueryParams(query)
	}
	if referer != "" {
		r.SetHeader("Referer", referer)
	}

	start := time.Now()
	resp, err := r.Get(url)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccessState() {
		return nil, &HTTPError{Status: resp.GetStatusCode(), URL: url}
	}
	body, err := resp.ToBytes()
	if err != nil {
		return nil, err
	}
	c.log.Debug("download",
		zap.String("url", url),
		zap.Int("status", resp.GetStatusCode()),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)))
	return body, nil
}
