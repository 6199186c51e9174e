package oraclehttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lessonloop/lessonloop/pkg/domain"
	"github.com/lessonloop/lessonloop/pkg/ports"
)

func TestCheck_Success(t *testing.T) {
	var gotReq ports.CheckRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		_ = json.NewEncoder(w).Encode(ports.CheckResult{
			IsCorrect:    true,
			Feedback:     "Верно!",
			ReactionText: "¡Muy bien!",
		})
	}))
	defer srv.Close()

	client := New(srv.URL)
	res, err := client.Check(context.Background(), ports.CheckRequest{
		Step:   domain.Step{Module: domain.ModuleSituations, Index: 1, SubIndex: 0},
		Answer: "La cuenta, por favor",
		UILang: "ru",
	})
	require.NoError(t, err)

	require.True(t, res.IsCorrect)
	require.Equal(t, "Верно!", res.Feedback)
	require.Equal(t, "¡Muy bien!", res.ReactionText)

	// The wire format carries the step snapshot and answer verbatim.
	require.Equal(t, domain.ModuleSituations, gotReq.Step.Module)
	require.Equal(t, 1, gotReq.Step.Index)
	require.Equal(t, "La cuenta, por favor", gotReq.Answer)
	require.Equal(t, "ru", gotReq.UILang)
}

func TestCheck_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Check(context.Background(), ports.CheckRequest{Answer: "x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "500")
}

func TestCheck_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Check(context.Background(), ports.CheckRequest{Answer: "x"})
	require.Error(t, err)
}

func TestCheck_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := New(srv.URL).Check(context.Background(), ports.CheckRequest{Answer: "x"})
	require.Error(t, err)
}

func TestCheck_ContextCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(srv.URL).Check(ctx, ports.CheckRequest{Answer: "x"})
	require.Error(t, err)
}
