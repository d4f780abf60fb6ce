package anki

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{URL: server.URL})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	return client
}

func TestGetVersion(t *testing.T) {
	client := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Action != "version" || req.Version != protocolVersion {
			t.Errorf("request = %+v", req)
		}
		_, _ = w.Write([]byte(`{"result": 6, "error": null}`))
	})

	version, err := client.GetVersion(context.Background())
	if err != nil {
		t.Fatalf("GetVersion error: %v", err)
	}
	if version != 6 {
		t.Fatalf("version = %d, want 6", version)
	}
	if !client.IsConnected(context.Background()) {
		t.Fatal("IsConnected = false against a live service")
	}
}

func TestAddNote(t *testing.T) {
	client := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Action string `json:"action"`
			Params struct {
				Note Note `json:"note"`
			} `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Params.Note.DeckName != "Vocabulary" {
			t.Errorf("deck = %q", req.Params.Note.DeckName)
		}
		_, _ = w.Write([]byte(`{"result": 1496198395707, "error": null}`))
	})

	result, err := client.AddNote(context.Background(), Note{
		DeckName:  "Vocabulary",
		ModelName: "Basic",
		Fields:    map[string]string{"Front": "hello", "Back": "greeting"},
	})
	if err != nil {
		t.Fatalf("AddNote error: %v", err)
	}
	if !result.Success || result.NoteID != 1496198395707 {
		t.Fatalf("AddNote result = %+v", result)
	}
}

func TestAddNoteRejection(t *testing.T) {
	client := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"result": null, "error": "cannot create note because it is a duplicate"}`))
	})

	result, err := client.AddNote(context.Background(), Note{DeckName: "Default", ModelName: "Basic"})
	if err != nil {
		t.Fatalf("AddNote error: %v", err)
	}
	if result.Success {
		t.Fatal("duplicate note reported success")
	}
	if result.Error == "" {
		t.Fatal("rejection carried no error text")
	}
}

func TestDeckAndModelListings(t *testing.T) {
	client := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		switch req.Action {
		case "deckNames":
			_, _ = w.Write([]byte(`{"result": ["Default", "Vocabulary"], "error": null}`))
		case "modelNames":
			_, _ = w.Write([]byte(`{"result": ["Basic"], "error": null}`))
		case "modelFieldNames":
			_, _ = w.Write([]byte(`{"result": ["Front", "Back"], "error": null}`))
		default:
			t.Errorf("unexpected action %q", req.Action)
		}
	})

	decks, err := client.GetDeckNames(context.Background())
	if err != nil {
		t.Fatalf("GetDeckNames error: %v", err)
	}
	if len(decks) != 2 {
		t.Fatalf("decks = %v", decks)
	}

	models, err := client.GetModelNames(context.Background())
	if err != nil {
		t.Fatalf("GetModelNames error: %v", err)
	}
	if len(models) != 1 || models[0] != "Basic" {
		t.Fatalf("models = %v", models)
	}

	fields, err := client.GetModelFieldNames(context.Background(), "Basic")
	if err != nil {
		t.Fatalf("GetModelFieldNames error: %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("fields = %v", fields)
	}
}

func TestUnreachableService(t *testing.T) {
	client, err := NewClient(Config{URL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}

	if _, err := client.GetVersion(context.Background()); !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("GetVersion error = %v, want ErrServiceUnavailable", err)
	}
	if client.IsConnected(context.Background()) {
		t.Fatal("IsConnected = true against nothing")
	}
}
