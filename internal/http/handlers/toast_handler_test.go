package handlers

import (
	"net/http"
	"testing"
)

func TestToasts_UnknownSession(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, "/sessions/ghost/toasts", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	if got := decode[ListToastsResponse](t, w); got.Toasts == nil || len(got.Toasts) != 0 {
		t.Fatalf("want empty list, got %+v", got.Toasts)
	}
	if w := e.do(t, http.MethodPost, "/sessions/ghost/toasts", map[string]any{"message": "hi", "severity": "info"}, nil); w.Code != http.StatusNotFound {
		t.Fatalf("create on unknown session = %d; want 404", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/sessions/ghost/toasts/t1", nil, nil); w.Code != http.StatusNoContent {
		t.Fatalf("dismiss on unknown session = %d; want 204", w.Code)
	}
}

func TestToasts_CreateListDismiss(t *testing.T) {
	e := newEnv(t)
	_, release := e.sessions.Acquire("s1")
	t.Cleanup(release)

	w := e.do(t, http.MethodPost, "/sessions/s1/toasts", map[string]any{"message": "Upload started", "severity": "info", "durationMs": 60000}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d body=%s", w.Code, w.Body.String())
	}
	id := decode[CreateToastResponse](t, w).ID
	if id == "" {
		t.Fatalf("empty toast id")
	}

	lst := decode[ListToastsResponse](t, e.do(t, http.MethodGet, "/sessions/s1/toasts", nil, nil))
	if len(lst.Toasts) != 1 || lst.Toasts[0].ID != id || lst.Toasts[0].Message != "Upload started" {
		t.Fatalf("unexpected toasts: %+v", lst.Toasts)
	}

	if w := e.do(t, http.MethodDelete, "/sessions/s1/toasts/"+id, nil, nil); w.Code != http.StatusNoContent {
		t.Fatalf("dismiss = %d", w.Code)
	}
	// Dismissing twice is still fine.
	if w := e.do(t, http.MethodDelete, "/sessions/s1/toasts/"+id, nil, nil); w.Code != http.StatusNoContent {
		t.Fatalf("second dismiss = %d", w.Code)
	}
	lst = decode[ListToastsResponse](t, e.do(t, http.MethodGet, "/sessions/s1/toasts", nil, nil))
	if len(lst.Toasts) != 0 {
		t.Fatalf("toast still listed after dismiss: %+v", lst.Toasts)
	}
}

func TestToasts_CreateValidation(t *testing.T) {
	e := newEnv(t)
	_, release := e.sessions.Acquire("s1")
	t.Cleanup(release)

	if w := e.do(t, http.MethodPost, "/sessions/s1/toasts", map[string]any{"message": "x", "severity": "fatal"}, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad severity = %d; want 400", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/sessions/s1/toasts", map[string]any{"severity": "info"}, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing message = %d; want 400", w.Code)
	}
}
