package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"consulta-di/internal/brfmt"
	"consulta-di/internal/export"
	"consulta-di/internal/frame"
	"consulta-di/internal/source"
)

type stubSource struct {
	raw   bool
	empty map[string]bool
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Schema() []frame.Column {
	return []frame.Column{{Name: "DATA REFERÊNCIA", Kind: frame.Date}, {Name: "TAXA", Kind: frame.Text}}
}

func (s *stubSource) Fetch(_ context.Context, date time.Time) (*frame.Frame, error) {
	if s.empty[brfmt.FormatISO(date)] {
		return nil, source.ErrNoData
	}
	f := frame.New(s.Schema())
	return f, f.Append([]any{date, "10,50"})
}

func (s *stubSource) EvidenceURL(date time.Time) string {
	return "https://b3/boletim?Data=" + brfmt.FormatDate(date)
}

func newTestServer(t *testing.T, src *stubSource) *httptest.Server {
	t.Helper()
	s := New(Config{
		Sources: func(name string, raw bool) (source.Source, error) {
			if name != source.NameExcel {
				return source.New(name, nil, source.Settings{}, nil)
			}
			src.raw = raw
			return src, nil
		},
		Now: func() time.Time { return time.Date(2024, time.January, 20, 10, 0, 0, 0, brfmt.Location()) },
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestIndex(t *testing.T) {
	ts := newTestServer(t, &stubSource{})
	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body bytes.Buffer
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)
	// 20/01/2024 é sábado
	assert.Contains(t, body.String(), `value="19/01/2024"`)
	assert.Contains(t, body.String(), `<option value="cotahist">`)
}

func TestQuerySingleDate(t *testing.T) {
	src := &stubSource{}
	ts := newTestServer(t, src)

	resp, err := http.Get(ts.URL + "/consulta?data=15/01/2024&bruto=1")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, export.ContentType, resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="DI_FUTURO_2024-01-15.xlsx"`, resp.Header.Get("Content-Disposition"))
	assert.True(t, src.raw)
	assert.Equal(t, []string{"15/01/2024 https://b3/boletim?Data=15/01/2024"}, resp.Header.Values("X-Evidencia"))

	book, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer book.Close()
	v, err := book.GetCellValue(export.DefaultSheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "10,50", v)
}

func TestQueryUpload(t *testing.T) {
	ts := newTestServer(t, &stubSource{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("arquivo", "datas.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("Data\n15/01/2024\n16/01/2024\n"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("fonte", source.NameExcel))
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/consulta", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="DI_FUTURO_CONSOLIDADO_20240120.xlsx"`, resp.Header.Get("Content-Disposition"))
	assert.Equal(t, "2", resp.Header.Get("X-Datas-Sucesso"))

	book, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows(export.DefaultSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestQueryNothingExtracted(t *testing.T) {
	ts := newTestServer(t, &stubSource{empty: map[string]bool{"2024-01-15": true}})

	resp, err := http.Get(ts.URL + "/consulta?data=2024-01-15")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var report failureReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.NotEmpty(t, report.Error)
	assert.Equal(t, []string{"15/01/2024"}, report.NoData)
	assert.Empty(t, report.Failures)
	require.Len(t, report.Evidence, 1)
	assert.Equal(t, "15/01/2024", report.Evidence[0].Day)
	assert.Equal(t, "https://b3/boletim?Data=15/01/2024", report.Evidence[0].URL)
}

func TestQueryBadRequests(t *testing.T) {
	ts := newTestServer(t, &stubSource{})

	for _, path := range []string{
		"/consulta",
		"/consulta?data=31/02/2024",
		"/consulta?data=15/01/2024&fonte=bloomberg",
	} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
	}
}

func TestHolidays(t *testing.T) {
	ts := newTestServer(t, &stubSource{})

	resp, err := http.Get(ts.URL + "/feriados?ano=2024")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Year     int `json:"ano"`
		Holidays []struct {
			Name string `json:"nome"`
		} `json:"feriados"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 2024, got.Year)
	require.NotEmpty(t, got.Holidays)
	assert.Equal(t, "Confraternização Universal", got.Holidays[0].Name)

	resp2, err := http.Get(ts.URL + "/feriados?ano=abc")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}
