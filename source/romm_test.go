package source_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romkeeper/romkeeper/job"
	"github.com/romkeeper/romkeeper/source"
)

type fakeRomm struct {
	tokens     atomic.Int64
	expireOnce atomic.Bool

	// failTailOnce makes the next non-first page request fail, simulating a
	// transient server error after some items were already delivered.
	failTailOnce atomic.Bool

	platforms []map[string]any
	roms      []map[string]any
}

func (f *fakeRomm) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.FormValue("username") != "admin" || r.FormValue("password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		n := f.tokens.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": fmt.Sprintf("token-%d", n),
			"token_type":   "bearer",
		})
	})

	auth := func(w http.ResponseWriter, r *http.Request) bool {
		token := r.Header.Get("Authorization")
		if f.expireOnce.CompareAndSwap(true, false) || token != fmt.Sprintf("Bearer token-%d", f.tokens.Load()) {
			w.WriteHeader(http.StatusUnauthorized)
			return false
		}
		return true
	}

	mux.HandleFunc("/api/platforms", func(w http.ResponseWriter, r *http.Request) {
		if !auth(w, r) {
			return
		}
		_ = json.NewEncoder(w).Encode(f.platforms)
	})

	mux.HandleFunc("/api/roms", func(w http.ResponseWriter, r *http.Request) {
		if !auth(w, r) {
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		if offset > 0 && f.failTailOnce.CompareAndSwap(true, false) {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		end := min(offset+limit, len(f.roms))
		items := []map[string]any{}
		if offset < len(f.roms) {
			items = f.roms[offset:end]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": items,
			"total": len(f.roms),
		})
	})

	return mux
}

func newFakeRomm() *fakeRomm {
	return &fakeRomm{
		platforms: []map[string]any{
			{"id": 1, "slug": "gba", "name": "GBA", "rom_count": 2},
			{"id": 2, "slug": "mystery-console", "name": "Mystery", "rom_count": 1},
		},
		roms: []map[string]any{
			{"id": 10, "platform_id": 1, "fs_name": "Some Game (USA).gba", "name": "Some Game",
				"fs_size_bytes": 1024, "regions": []string{"US"}, "md5_hash": "900150983cd24fb0d6963f7d28e17f72"},
			{"id": 11, "platform_id": 1, "fs_name": "other-game.gba", "name": "",
				"fs_size_bytes": 2048},
			{"id": 12, "platform_id": 2, "fs_name": "mystery.bin", "name": "Mystery Game"},
		},
	}
}

func TestRommClient_Auth(t *testing.T) {
	fake := newFakeRomm()
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client, err := source.NewRommClient(server.URL+"/", "admin", "secret")
	require.NoError(t, err)

	platforms, err := client.Platforms(context.Background())
	require.NoError(t, err)
	assert.Len(t, platforms, 2)
	assert.EqualValues(t, 1, fake.tokens.Load(), "token must be reused across calls")

	_, err = client.Platforms(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, fake.tokens.Load())
}

func TestRommClient_BadCredentials(t *testing.T) {
	server := httptest.NewServer(newFakeRomm().handler())
	defer server.Close()

	client, err := source.NewRommClient(server.URL, "admin", "wrong")
	require.NoError(t, err)

	_, err = client.Platforms(context.Background())
	assert.ErrorIs(t, err, source.ErrAuthRejected)
}

func TestRommClient_ReauthenticatesOn401(t *testing.T) {
	fake := newFakeRomm()
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client, err := source.NewRommClient(server.URL, "admin", "secret")
	require.NoError(t, err)

	_, err = client.Platforms(context.Background())
	require.NoError(t, err)

	// Server-side token expiry: the next call gets one 401, then recovers.
	fake.expireOnce.Store(true)
	_, err = client.Platforms(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, fake.tokens.Load())
}

func TestRommAdapter_List(t *testing.T) {
	fake := newFakeRomm()
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client, err := source.NewRommClient(server.URL, "admin", "secret")
	require.NoError(t, err)
	adapter := source.NewRommAdapter(client, "test", zerolog.Nop())

	roms := collect(t, adapter, job.NopSink())

	// The mystery-console rom is dropped: its platform has no local slug.
	require.Len(t, roms, 2)

	assert.Equal(t, "gba", roms[0].PlatformSlug)
	assert.Equal(t, "Some Game", roms[0].Name)
	assert.Equal(t, "Some Game (USA).gba", roms[0].FileName)
	assert.Equal(t, "10", roms[0].RemoteID)
	assert.Equal(t, server.URL+"/api/roms/10/content", roms[0].RemoteURL)
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", roms[0].HashMD5)
	assert.Equal(t, []string{"US"}, roms[0].Regions)
	require.NotNil(t, roms[0].Size)
	assert.EqualValues(t, 1024, *roms[0].Size)

	// Display name falls back to the file name without extension.
	assert.Equal(t, "other-game", roms[1].Name)
}

func TestRommAdapter_ListSurfacesPageFailure(t *testing.T) {
	fake := newFakeRomm()
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client, err := source.NewRommClient(server.URL, "admin", "secret")
	require.NoError(t, err)
	adapter := source.NewRommAdapter(client, "test", zerolog.Nop())

	fake.failTailOnce.Store(true)
	listing, err := adapter.List(context.Background(), job.NopSink())
	require.NoError(t, err)

	var items []source.ObservedRom
	var listErr error
	for obs, err := range listing {
		if err != nil {
			listErr = err
			break
		}
		items = append(items, obs)
	}

	// Items from the successful page stand, and the failure is visible as
	// the sequence's terminal error instead of a silently short listing.
	assert.Len(t, items, 2)
	require.Error(t, listErr)
	assert.Contains(t, listErr.Error(), "offset")
}

func TestRommAdapter_TestConnection(t *testing.T) {
	server := httptest.NewServer(newFakeRomm().handler())
	defer server.Close()

	client, err := source.NewRommClient(server.URL, "admin", "secret")
	require.NoError(t, err)
	adapter := source.NewRommAdapter(client, "test", zerolog.Nop())

	result, err := adapter.TestConnection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.PlatformCount)
	assert.EqualValues(t, 3, result.RomCount)
}

func TestNewRommClient_Validation(t *testing.T) {
	_, err := source.NewRommClient("", "user", "pass")
	assert.Error(t, err)

	_, err = source.NewRommClient("https://romm.example", "", "pass")
	assert.Error(t, err)
}
