package diag

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.HandleFunc("/api/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(strings.Repeat("x", 300)))
	})
	r.HandleFunc("/api/corridors", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	r.HandleFunc("/debug/routes", func(w http.ResponseWriter, req *http.Request) {
		<-req.Context().Done()
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	results := Check(context.Background(), srv.Client(), srv.URL+"/", DefaultEndpoints(), 50*time.Millisecond)

	require.Len(t, results, 4)
	assert.True(t, results[0].OK)
	assert.Equal(t, `{"status":"ok"}`, results[0].Preview)

	assert.True(t, results[1].OK)
	assert.Len(t, results[1].Preview, previewLen+3)

	assert.False(t, results[2].OK)
	assert.Equal(t, "HTTP 503", results[2].Error)

	assert.False(t, results[3].OK)
	assert.Equal(t, "Timeout", results[3].Error)

	assert.False(t, AllOK(results))
	assert.True(t, AllOK(results[:2]))
}

func TestCheck_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	results := Check(context.Background(), nil, url, DefaultEndpoints()[:1], time.Second)

	require.Len(t, results, 1)
	assert.False(t, results[0].OK)
	assert.NotEmpty(t, results[0].Error)
	assert.Zero(t, results[0].Status)
}
