package oracle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"roundkeeper/internal/cache"
)

func TestToMicro_Boundaries(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"1.0000005", 1000000},
		{"1.0000009999", 1000000},
		{"8.123456", 8123456},
		{"8.5", 8500000},
		{"0.000001", 1},
		{"12345.6789019", 12345678901},
	}
	for _, tc := range cases {
		got, err := ToMicro(decimal.RequireFromString(tc.in))
		if err != nil {
			t.Fatalf("ToMicro(%s) err=%v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ToMicro(%s)=%d want %d", tc.in, got, tc.want)
		}
	}
}

func TestToMicro_Invalid(t *testing.T) {
	for _, in := range []string{"0", "-1.5", "0.0000009"} {
		if _, err := ToMicro(decimal.RequireFromString(in)); !errors.Is(err, ErrPriceInvalid) {
			t.Fatalf("ToMicro(%s) err=%v want ErrPriceInvalid", in, err)
		}
	}
}

func TestFromMicro(t *testing.T) {
	if got := FromMicro(8123456).String(); got != "8.123456" {
		t.Fatalf("FromMicro=%s want 8.123456", got)
	}
}

func TestParseLatestPriceFeeds(t *testing.T) {
	body := []byte(`[{"id":"abc","price":{"price":"812345600","conf":"1","expo":-8,"publish_time":1700000000}}]`)
	p, err := parseLatestPriceFeeds(body)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if p.Micro != 8123456 {
		t.Fatalf("micro=%d want 8123456", p.Micro)
	}
	if p.FeedID != "abc" || p.PublishTime != 1700000000 {
		t.Fatalf("feed=%q publish=%d", p.FeedID, p.PublishTime)
	}
}

func TestParseLatestPriceFeeds_NumericMantissa(t *testing.T) {
	p, err := parseLatestPriceFeeds([]byte(`[{"price":{"price":10000005,"expo":-7}}]`))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if p.Micro != 1000000 {
		t.Fatalf("micro=%d want 1000000", p.Micro)
	}
}

func TestParseLatestPriceFeeds_Errors(t *testing.T) {
	cases := map[string]error{
		`[]`:                                      ErrMalformed,
		`{"price":{}}`:                            ErrMalformed,
		`[{"id":"x"}]`:                            ErrMalformed,
		`[{"price":{"price":"100"}}]`:             ErrMalformed,
		`[{"price":{"price":"abc","expo":-2}}]`:   ErrMalformed,
		`[{"price":{"price":"0","expo":-2}}]`:     ErrPriceInvalid,
		`[{"price":{"price":"-500","expo":-2}}]`:  ErrPriceInvalid,
		`not json`:                                ErrMalformed,
	}
	for body, want := range cases {
		if _, err := parseLatestPriceFeeds([]byte(body)); !errors.Is(err, want) {
			t.Fatalf("body=%s err=%v want %v", body, err, want)
		}
	}
}

func TestFetchCurrentPrice_Transport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "feed")
	if _, err := c.FetchCurrentPrice(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err=%v want ErrUnavailable", err)
	}
}

func TestFetchCurrentPrice_QueryAndCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/api/latest_price_feeds" {
			t.Errorf("path=%s", r.URL.Path)
		}
		if got := r.URL.Query().Get("ids[]"); got != "feed" {
			t.Errorf("ids[]=%q want feed", got)
		}
		_, _ = w.Write([]byte(`[{"id":"feed","price":{"price":"850000000","expo":-8}}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "feed")
	c.Cache = cache.NewMemoryStore()
	c.CacheTTL = time.Minute

	for i := 0; i < 3; i++ {
		p, err := c.FetchCurrentPrice(context.Background())
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if p.Micro != 8500000 {
			t.Fatalf("micro=%d want 8500000", p.Micro)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls=%d want 1", got)
	}
}

func TestFetchCurrentPrice_MissingFeed(t *testing.T) {
	c := NewClient(nil, "http://127.0.0.1:0", "")
	if _, err := c.FetchCurrentPrice(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err=%v want ErrUnavailable", err)
	}
}
