package updater

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestChecker(t *testing.T, current string, handler http.HandlerFunc) *Checker {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewChecker(current, zap.NewNop())
	c.endpoint = srv.URL
	return c
}

func TestCheck_NewerRelease(t *testing.T) {
	c := newTestChecker(t, "1.2.0", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tag_name": "v1.3.0", "html_url": "https://example.com/v1.3.0"}`))
	})

	upd, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, upd.Newer)
	assert.Equal(t, "v1.3.0", upd.Version)
	assert.Equal(t, "https://example.com/v1.3.0", upd.URL)
}

func TestCheck_UpToDate(t *testing.T) {
	c := newTestChecker(t, "v2.0.0", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tag_name": "v2.0.0"}`))
	})

	upd, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, upd.Newer)
}

func TestCheck_ServerError(t *testing.T) {
	c := newTestChecker(t, "1.0.0", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusForbidden)
	})

	_, err := c.Check(context.Background())
	assert.Error(t, err)
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"v1.0.0", "1.0.0", 0},
		{"1.0.1", "1.0.0", 1},
		{"1.0.0", "1.1.0", -1},
		{"2.0", "1.9.9", 1},
		{"1.2.0-rc1", "1.2.0", 0},
		{"10.0.0", "9.0.0", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, compareVersions(tt.a, tt.b), "%s vs %s", tt.a, tt.b)
	}
}
