package translate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func libreServer(t *testing.T, handler func(w http.ResponseWriter, req libreRequest)) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/translate", r.URL.Path)
		var req libreRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(url string, retries int) *LibreClient {
	return NewLibreClient(LibreConfig{
		URL:                url,
		APIKey:             "k",
		Timeout:            time.Second,
		MaxRetries:         retries,
		BreakerMaxFailures: 2,
		BreakerTimeout:     time.Minute,
	}, zap.NewNop())
}

func TestLibreClient_Translate(t *testing.T) {
	ctx := context.Background()

	t.Run("should send the libre payload and return the translation", func(t *testing.T) {
		req := require.New(t)
		srv, _ := libreServer(t, func(w http.ResponseWriter, in libreRequest) {
			assert.Equal(t, libreRequest{Q: "hello", Source: "auto", Target: "fr", Format: "text", APIKey: "k"}, in)
			_ = json.NewEncoder(w).Encode(libreResponse{TranslatedText: "bonjour"})
		})

		out, err := newTestClient(srv.URL, 0).Translate(ctx, "hello", "auto", "fr")

		req.NoError(err)
		req.Equal("bonjour", out)
	})

	t.Run("should retry server errors", func(t *testing.T) {
		var n int32
		srv, calls := libreServer(t, func(w http.ResponseWriter, _ libreRequest) {
			if atomic.AddInt32(&n, 1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_ = json.NewEncoder(w).Encode(libreResponse{TranslatedText: "hola"})
		})

		out, err := newTestClient(srv.URL, 2).Translate(ctx, "hello", "en", "es")

		require.NoError(t, err)
		require.Equal(t, "hola", out)
		require.EqualValues(t, 2, atomic.LoadInt32(calls))
	})

	t.Run("should not retry rejected requests", func(t *testing.T) {
		srv, calls := libreServer(t, func(w http.ResponseWriter, _ libreRequest) {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(libreResponse{Error: "xx is not supported"})
		})

		_, err := newTestClient(srv.URL, 3).Translate(ctx, "hello", "en", "xx")

		require.ErrorIs(t, err, ErrRejected)
		require.EqualValues(t, 1, atomic.LoadInt32(calls))
	})

	t.Run("should open the breaker after repeated failures", func(t *testing.T) {
		srv, calls := libreServer(t, func(w http.ResponseWriter, _ libreRequest) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		c := newTestClient(srv.URL, 0)

		for i := 0; i < 2; i++ {
			_, err := c.Translate(ctx, "hello", "en", "fr")
			require.Error(t, err)
		}
		_, err := c.Translate(ctx, "hello", "en", "fr")

		require.Error(t, err)
		require.EqualValues(t, 2, atomic.LoadInt32(calls))
	})
}

type stubTranslator struct {
	out    string
	err    error
	calls  int
	source string
	target string
}

func (s *stubTranslator) Translate(_ context.Context, text, source, target string) (string, error) {
	s.calls++
	s.source, s.target = source, target
	return s.out, s.err
}

func TestAdapter_Translate(t *testing.T) {
	ctx := context.Background()

	t.Run("should return the provider output", func(t *testing.T) {
		stub := &stubTranslator{out: "bonjour"}
		a := NewAdapter(stub, "en", zap.NewNop())

		require.Equal(t, "bonjour", a.Translate(ctx, "hello", "fr-CA"))
		require.Equal(t, "fr", stub.target)
	})

	t.Run("should fall back to the default language", func(t *testing.T) {
		stub := &stubTranslator{out: "hello"}
		a := NewAdapter(stub, "en", zap.NewNop())
		a.detect = func(string) string { return "fr" }

		a.Translate(ctx, "bonjour", "")

		require.Equal(t, "en", stub.target)
		require.Equal(t, AutoSource, stub.source)
	})

	t.Run("should let the provider detect a misdetected phrase", func(t *testing.T) {
		stub := &stubTranslator{out: "à demain"}
		a := NewAdapter(stub, "en", zap.NewNop())
		a.detect = func(string) string { return "ht" }

		require.Equal(t, "à demain", a.Translate(ctx, "see you tomorrow", "fr"))
		require.Equal(t, AutoSource, stub.source)
		require.Equal(t, "fr", stub.target)
	})

	t.Run("should skip the provider when source and target match", func(t *testing.T) {
		stub := &stubTranslator{out: "unused"}
		a := NewAdapter(stub, "en", zap.NewNop())
		a.detect = func(string) string { return "en" }

		require.Equal(t, "hello there", a.Translate(ctx, "hello there", "EN"))
		require.Zero(t, stub.calls)
	})

	t.Run("should degrade to the original text on failure", func(t *testing.T) {
		a := NewAdapter(&stubTranslator{err: errors.New("provider down")}, "en", zap.NewNop())
		require.Equal(t, "hello", a.Translate(ctx, "hello", "fr"))
	})

	t.Run("should degrade to the original text on empty output", func(t *testing.T) {
		a := NewAdapter(&stubTranslator{out: "  "}, "en", zap.NewNop())
		require.Equal(t, "hello", a.Translate(ctx, "hello", "fr"))
	})
}

func TestNormalizeTag(t *testing.T) {
	for in, want := range map[string]string{"fr-CA": "fr", "EN": "en", " pt_BR ": "pt", "": "", "de": "de"} {
		require.Equal(t, want, NormalizeTag(in), in)
	}
}

func TestDetectSource(t *testing.T) {
	require.Equal(t, "auto", DetectSource(""))
	require.Equal(t, "en", DetectSource("The weather has been wonderful this week and we are planning a long walk through the forest with all of our friends."))
}

func TestNop(t *testing.T) {
	out, err := Nop{}.Translate(context.Background(), "hello", "en", "fr")
	require.NoError(t, err)
	require.Equal(t, "hello", out)
}
