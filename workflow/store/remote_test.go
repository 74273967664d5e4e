package store_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/flowcraft/dagflow-go/workflow/store"
)

func newTestContext() context.Context {
	return context.Background()
}

func newFakeRemote() *httptest.Server {
	var mu sync.Mutex
	data := map[string]json.RawMessage{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		if r.URL.Path == "/workflows" && r.Method == http.MethodGet {
			mu.Lock()
			ids := make([]string, 0, len(data))
			for id := range data {
				ids = append(ids, id)
			}
			mu.Unlock()
			_ = json.NewEncoder(w).Encode(ids)
			return
		}

		id := r.URL.Path[len("/workflows/"):]
		switch r.Method {
		case http.MethodPut:
			var body json.RawMessage
			_ = json.NewDecoder(r.Body).Decode(&body)
			mu.Lock()
			data[id] = body
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			mu.Lock()
			body, ok := data[id]
			mu.Unlock()
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(body)
		case http.MethodDelete:
			mu.Lock()
			_, ok := data[id]
			delete(data, id)
			mu.Unlock()
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusOK)
		}
	}))
}

func TestRemoteStoreSaveLoadDeleteRoundTrip(t *testing.T) {
	srv := newFakeRemote()
	defer srv.Close()

	rs := store.NewRemoteStore[sample](srv.URL, "test-key", 5*time.Second)
	ctx := newTestContext()

	if err := rs.Save(ctx, "a", sample{Name: "alpha"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, found, err := rs.Load(ctx, "a")
	if err != nil || !found {
		t.Fatalf("Load: got=%+v found=%v err=%v", got, found, err)
	}
	if got.Name != "alpha" {
		t.Errorf("Name = %q, want alpha", got.Name)
	}

	if err := rs.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, found, _ := rs.Load(ctx, "a"); found {
		t.Error("expected found=false after Delete")
	}
}

func TestRemoteStoreLoadMissingReturnsNotFoundNotError(t *testing.T) {
	srv := newFakeRemote()
	defer srv.Close()

	rs := store.NewRemoteStore[sample](srv.URL, "test-key", 5*time.Second)
	_, found, err := rs.Load(newTestContext(), "missing")
	if err != nil {
		t.Fatalf("Load of a missing id should not error, got: %v", err)
	}
	if found {
		t.Error("expected found=false")
	}
}

func TestRemoteStoreDeleteOfMissingIsTolerated(t *testing.T) {
	srv := newFakeRemote()
	defer srv.Close()

	rs := store.NewRemoteStore[sample](srv.URL, "test-key", 5*time.Second)
	if err := rs.Delete(newTestContext(), "missing"); err != nil {
		t.Errorf("Delete of a missing id should tolerate 404, got: %v", err)
	}
}

func TestRemoteStoreListReturnsBareArrayShape(t *testing.T) {
	srv := newFakeRemote()
	defer srv.Close()

	rs := store.NewRemoteStore[sample](srv.URL, "test-key", 5*time.Second)
	ctx := newTestContext()
	if err := rs.Save(ctx, "a", sample{Name: "alpha"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := rs.Save(ctx, "b", sample{Name: "beta"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ids, err := rs.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("List = %v, want 2 ids", ids)
	}
}

func TestRemoteStoreSurfacesUnauthorized(t *testing.T) {
	srv := newFakeRemote()
	defer srv.Close()

	rs := store.NewRemoteStore[sample](srv.URL, "wrong-key", 5*time.Second)
	if err := rs.Save(newTestContext(), "a", sample{Name: "alpha"}); err == nil {
		t.Fatal("expected an error for an unauthorized save")
	}
}
