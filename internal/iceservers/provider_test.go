package iceservers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchWrappedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"iceServers":[{"urls":["turn:relay.example.com:3478"],"username":"u","credential":"c"}]}`))
	}))
	defer srv.Close()

	p := New(srv.URL, 0, zerolog.Nop())
	servers, err := p.fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, []string{"turn:relay.example.com:3478"}, servers[0].URLs)
	assert.Equal(t, "u", servers[0].Username)
	assert.Equal(t, "c", servers[0].Credential)
}

func TestFetchBareArrayResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"urls":["stun:stun.example.com:3478"]}]`))
	}))
	defer srv.Close()

	p := New(srv.URL, 0, zerolog.Nop())
	servers, err := p.fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, []string{"stun:stun.example.com:3478"}, servers[0].URLs)
}

func TestFetchRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	p := New(srv.URL, 0, zerolog.Nop())
	_, err := p.fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestFetchRejectsGarbage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	p := New(srv.URL, 0, zerolog.Nop())
	_, err := p.fetch(context.Background())
	require.Error(t, err)
}

func TestCurrentNilUntilFirstFetch(t *testing.T) {
	p := New("http://unused.invalid", time.Hour, zerolog.Nop())
	assert.Nil(t, p.Current())
}

func TestStartWithoutURLIsNoop(t *testing.T) {
	p := New("", time.Hour, zerolog.Nop())
	p.Start(context.Background())
	assert.Nil(t, p.Current())
}

func TestStartPopulatesCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"iceServers":[{"urls":["stun:stun.example.com:3478"]}]}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := New(srv.URL, 0, zerolog.Nop())
	p.Start(ctx)

	require.Eventually(t, func() bool {
		return len(p.Current()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEmptyListDistinctFromUnfetched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"iceServers":[]}`))
	}))
	defer srv.Close()

	p := New(srv.URL, 0, zerolog.Nop())
	servers, err := p.fetch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, servers)
	assert.Empty(t, servers)

	p.current.Store(&servers)
	got := p.Current()
	require.NotNil(t, got)
	assert.Empty(t, got)
}
