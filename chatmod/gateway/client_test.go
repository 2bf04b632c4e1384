package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClientActions(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "token123", 100)

	assert.NoError(c.DeleteContent(ctx, "g1", "evt1"))
	assert.Equal("/actions/deleteContent", gotPath)
	assert.Equal("g1", gotBody["group_id"])

	assert.NoError(c.RestrictUser(ctx, "g1", "u1", time.Hour))
	assert.Equal("/actions/restrictUser", gotPath)
	assert.Equal(float64(3600), gotBody["duration_sec"])

	assert.NoError(c.BanUser(ctx, "g1", "u1"))
	assert.Equal("/actions/banUser", gotPath)
}

func TestClientIdempotentStatuses(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	// gateway says "already banned" / "content gone"; both must be no-ops
	for _, code := range []int{http.StatusNotFound, http.StatusConflict} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))
		c := NewClient(srv.URL, "", 100)
		assert.NoError(c.BanUser(ctx, "g1", "u1"))
		srv.Close()
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "", 100)
	assert.Error(c.BanUser(ctx, "g1", "u1"))
}
