package eastmoney

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newthinker/bigthing/internal/collector"
	"github.com/newthinker/bigthing/internal/core"
)

func TestEastmoney_ImplementsProvider(t *testing.T) {
	var _ collector.Provider = (*Eastmoney)(nil)
}

func TestEastmoney_Name(t *testing.T) {
	e := New(collector.Config{})
	if e.Name() != "eastmoney" {
		t.Errorf("expected 'eastmoney', got '%s'", e.Name())
	}
}

func TestSecID(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"600519.SH", "1.600519", false}, // Shanghai = 1
		{"000001.SZ", "0.000001", false}, // Shenzhen = 0
		{"0700.hk", "116.0700", false},
		{"AAPL", "", true},
		{"AAPL.US", "", true},
	}

	for _, tc := range tests {
		got, err := secID(tc.input)
		if (err != nil) != tc.wantErr {
			t.Errorf("secID(%s) error = %v, wantErr %v", tc.input, err, tc.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, core.ErrSymbolNotFound) {
			t.Errorf("secID(%s) expected ErrSymbolNotFound, got %v", tc.input, err)
		}
		if got != tc.want {
			t.Errorf("secID(%s) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestFetchSeries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != klinePath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("secid"); got != "1.600519" {
			t.Errorf("expected secid 1.600519, got %s", got)
		}
		if got := r.URL.Query().Get("lmt"); got != "2" {
			t.Errorf("expected lmt 2, got %s", got)
		}
		w.Write([]byte(`{"data":{"code":"600519","klines":[
			"2025-05-30,1500.0,1510.5,1520.0,1495.0,30000",
			"bad line",
			"2025-06-02,1510.0,1490.0,1515.0,1480.0,42000"]}}`))
	}))
	defer server.Close()

	e := New(collector.Config{BaseURL: server.URL})
	s, err := e.FetchSeries(context.Background(), "600519.SH", 2)
	if err != nil {
		t.Fatalf("FetchSeries failed: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 bars, got %d", s.Len())
	}
	last := s.Last()
	if last.Close != 1490 || last.High != 1515 || last.Low != 1480 || last.Volume != 42000 {
		t.Errorf("unexpected last bar %+v", last)
	}
	if !s.AsOf().Equal(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected as-of %s", s.AsOf())
	}
}

func TestFetchSeries_NoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":null}`))
	}))
	defer server.Close()

	e := New(collector.Config{BaseURL: server.URL})
	_, err := e.FetchSeries(context.Background(), "000001.SZ", 10)
	if !errors.Is(err, core.ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestFetchFundamentals_Missing(t *testing.T) {
	e := New(collector.Config{})
	_, err := e.FetchFundamentals(context.Background(), "600519.SH")
	if !errors.Is(err, core.ErrMissingFundamentals) {
		t.Errorf("expected ErrMissingFundamentals, got %v", err)
	}
}
