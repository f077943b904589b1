package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Success(t *testing.T) {
	var got struct {
		Tags    []string `json:"tags"`
		Content string   `json:"content"`
		IsImage int      `json:"isimage"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/aigen/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(canonicalSchedule))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", WithToken("secret"))
	resp, err := c.Generate(context.Background(), Request{Tags: []string{"工作"}, Content: "周四开会"})
	require.NoError(t, err)

	assert.Equal(t, []string{"工作"}, got.Tags)
	assert.Equal(t, "周四开会", got.Content)
	assert.Equal(t, 0, got.IsImage)
	assert.Equal(t, CategorySchedule, resp.Category())
	assert.Len(t, resp.Tasks(), 2)
}

func TestGenerate_ImageFlagAndNoToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 1, body["isimage"])
		assert.Equal(t, []any{}, body["tags"])
		_, _ = w.Write([]byte(`{"mostPossibleCategory":"knowledge","knowledge":{"title":"t"}}`))
	}))
	defer srv.Close()

	resp, err := New(srv.URL).Generate(context.Background(), Request{Content: "aGVsbG8=", IsImage: true})
	require.NoError(t, err)
	assert.Equal(t, "t", resp.Title())
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   Kind
	}{
		{"unauthorized", http.StatusUnauthorized, `{"detail":"no"}`, KindUnauthorized},
		{"server error", http.StatusInternalServerError, `oops`, KindServer},
		{"not found", http.StatusNotFound, ``, KindServer},
		{"empty body", http.StatusOK, ``, KindNoData},
		{"blank body", http.StatusOK, "  \n", KindNoData},
		{"undecodable", http.StatusOK, `{"schedule": [}`, KindDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			resp, err := New(srv.URL).Generate(context.Background(), Request{Content: "x"})
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.Equal(t, tt.kind, KindOf(err))

			var ae *Error
			require.ErrorAs(t, err, &ae)
			if tt.kind == KindServer {
				assert.Equal(t, tt.status, ae.StatusCode)
			}
		})
	}
}

func TestGenerate_EmptyContentSendsNothing(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Generate(context.Background(), Request{Content: "   "})
	assert.Equal(t, KindEmptyContent, KindOf(err))
	assert.Zero(t, hits.Load())
}

func TestGenerate_InvalidEndpoint(t *testing.T) {
	for _, base := range []string{"", "not a url", "ftp://example.com", "http://"} {
		_, err := New(base).Generate(context.Background(), Request{Content: "x"})
		assert.Equal(t, KindInvalidEndpoint, KindOf(err), base)
	}
}

func TestGenerate_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url).Generate(context.Background(), Request{Content: "x"})
	assert.Equal(t, KindNetwork, KindOf(err))

	var ae *Error
	require.ErrorAs(t, err, &ae)
	assert.Error(t, ae.Unwrap())
}

func TestGenerate_RequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := New(srv.URL, WithTimeouts(50*time.Millisecond, 5*time.Second))
	started := time.Now()
	_, err := c.Generate(context.Background(), Request{Content: "x"})
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.Less(t, time.Since(started), 400*time.Millisecond)
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Kind: KindServer, StatusCode: 502}
	assert.Equal(t, "analysis server (HTTP 502)", err.Error())
	assert.Empty(t, KindOf(assert.AnError))
}
