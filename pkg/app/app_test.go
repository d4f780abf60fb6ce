package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"wordbridge/pkg/config"
	"wordbridge/pkg/eventbus"
	"wordbridge/pkg/handler"
	"wordbridge/pkg/options"
	"wordbridge/pkg/router"
)

func writeBundle(t *testing.T, dir, file string, bundle map[string]any) {
	t.Helper()

	raw, err := json.Marshal(bundle)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), raw, 0o600))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	dictDir := t.TempDir()
	writeBundle(t, dictDir, "oxford.json", map[string]any{
		"objectname":  "Oxford",
		"displayname": "Oxford Learner's",
		"locale":      "en",
		"terms": map[string]any{
			"hello": map[string]any{
				"reading":     "həˈləʊ",
				"definitions": []string{"used as a greeting"},
			},
		},
	})
	writeBundle(t, dictDir, "collins.json", map[string]any{
		"objectname":  "Collins",
		"displayname": "Collins English",
		"locale":      "en",
		"terms": map[string]any{
			"hello": map[string]any{
				"definitions": []string{"an expression of greeting"},
			},
		},
	})

	cfg := &config.Config{}
	cfg.Dictionaries.Dir = dictDir
	cfg.Options.Path = filepath.Join(t.TempDir(), "options.json")
	cfg.Anki.URL = "http://127.0.0.1:1"
	cfg.Anki.TimeoutSeconds = 1
	return cfg
}

func buildApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()

	a, err := Build(cfg, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	require.NoError(t, err)
	return a
}

func route(t *testing.T, a *App, action string, params any) router.Response {
	t.Helper()

	var raw json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		require.NoError(t, err)
		raw = encoded
	}

	resp, err := a.Router.Route(context.Background(), router.Message{Action: action, Params: raw}, router.Sender{TabID: 1})
	require.NoError(t, err)
	return resp
}

func TestBuildRegistersActionCatalogue(t *testing.T) {
	a := buildApp(t, testConfig(t))

	for _, action := range []string{
		"getTranslation", "findTerm", "addNote", "playAudio",
		"isConnected", "getDeckNames", "getModelNames",
		"getModelFieldNames", "getVersion", handler.ActionOptionsChanged,
		"getLocale", "Fetch", "Deinflect", "getBuiltin",
	} {
		require.Truef(t, a.Router.HasHandler(action), "action %q not registered", action)
	}
}

func TestFindTermEndToEnd(t *testing.T) {
	a := buildApp(t, testConfig(t))

	resp := route(t, a, "findTerm", map[string]string{"dict": "Oxford", "word": "hello"})
	require.True(t, resp.Success)

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)

	var def struct {
		Expression  string   `json:"expression"`
		Definitions []string `json:"definitions"`
	}
	require.NoError(t, json.Unmarshal(raw, &def))
	require.Equal(t, "hello", def.Expression)
	require.Equal(t, []string{"used as a greeting"}, def.Definitions)
}

func TestFindTermUnknownDictionaryResolvesNull(t *testing.T) {
	a := buildApp(t, testConfig(t))

	resp := route(t, a, "findTerm", map[string]string{"dict": "Missing", "word": "hello"})
	require.True(t, resp.Success)
	require.Nil(t, resp.Data)
}

func TestUnknownActionUsesDefaultResponse(t *testing.T) {
	a := buildApp(t, testConfig(t))

	resp, err := a.Router.Route(context.Background(), router.Message{Action: "nope"}, router.Sender{})
	require.NoError(t, err)
	require.False(t, resp.Success)
	require.Equal(t, "unknown action", resp.Error)
}

func TestUnknownActionHardFailurePolicy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Router.ThrowOnUnknown = true
	a := buildApp(t, cfg)

	_, err := a.Router.Route(context.Background(), router.Message{Action: "nope"}, router.Sender{})
	require.ErrorIs(t, err, router.ErrUnknownAction)
}

func TestOptionsChangeReloadsDictionariesAndRebroadcasts(t *testing.T) {
	a := buildApp(t, testConfig(t))

	var mu sync.Mutex
	var seen []options.Options
	_, err := a.Bus.On(EventOptionsChanged, func(_ context.Context, data any) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, data.(options.Options))
		return nil
	}, eventbus.SubscribeOptions{})
	require.NoError(t, err)

	resp := route(t, a, handler.ActionOptionsChanged, map[string]any{
		"dictNamelist": []string{"Collins"},
	})
	require.True(t, resp.Success)

	// Oxford was dropped from the selection, so lookups fall back to the
	// remaining dictionary.
	lookup := route(t, a, "findTerm", map[string]string{"word": "hello"})
	require.True(t, lookup.Success)
	require.NotNil(t, lookup.Data)

	oxford := route(t, a, "findTerm", map[string]string{"dict": "Oxford", "word": "hello"})
	require.True(t, oxford.Success)
	require.Nil(t, oxford.Data)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	require.Equal(t, []string{"Collins"}, seen[0].Dictionaries)
}

func TestRateLimitMiddlewareWired(t *testing.T) {
	cfg := testConfig(t)
	cfg.Router.RateLimit = 2
	cfg.Router.RateWindowSeconds = int((time.Minute).Seconds())
	a := buildApp(t, cfg)

	for i := 0; i < 2; i++ {
		resp := route(t, a, "getLocale", nil)
		require.True(t, resp.Success)
	}

	resp := route(t, a, "getLocale", nil)
	require.False(t, resp.Success)
	require.Equal(t, "Rate limit exceeded", resp.Error)
}
