package scorer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientScoreImage(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/score", r.URL.Path)
		assert.Equal("image/png", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"score": 0.75}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	score, err := c.ScoreImage(ctx, []byte("fake-image-bytes"), "image/png")
	assert.NoError(err)
	assert.Equal(0.75, score)
}

func TestClientScoreImageErrors(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.ScoreImage(ctx, []byte("x"), "image/png")
	assert.Error(err)

	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"score": 7.5}`))
	}))
	defer srv2.Close()

	c2 := NewClient(srv2.URL, "")
	_, err = c2.ScoreImage(ctx, []byte("x"), "image/png")
	assert.Error(err)
}
