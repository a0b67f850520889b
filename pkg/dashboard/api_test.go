package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAPI_HandleNodes(t *testing.T) {
	a := &api{
		nodes: func() []NodeView {
			return []NodeView{{NodeID: 31210001, DmrID: 312100, ESSID: 1, Authenticated: true}}
		},
		talkgroups: func() []TalkgroupView { return nil },
	}

	req := httptest.NewRequest(http.MethodGet, "/api/nodes", nil)
	w := httptest.NewRecorder()
	a.handleNodes(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got []NodeView
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].NodeID != 31210001 {
		t.Errorf("got %+v", got)
	}
}

func TestAPI_HandleTalkgroups(t *testing.T) {
	a := &api{
		nodes: func() []NodeView { return nil },
		talkgroups: func() []TalkgroupView {
			return []TalkgroupView{{TG: 3100, Owned: true, OwnerNodeID: 31210001, SubscriberCount: 2}}
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/talkgroups", nil)
	w := httptest.NewRecorder()
	a.handleTalkgroups(w, req)

	resp := w.Result()
	var got []TalkgroupView
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].TG != 3100 {
		t.Errorf("got %+v", got)
	}
}

func TestAPI_MethodNotAllowed(t *testing.T) {
	a := &api{
		nodes:      func() []NodeView { return nil },
		talkgroups: func() []TalkgroupView { return nil },
	}

	req := httptest.NewRequest(http.MethodPost, "/api/nodes", nil)
	w := httptest.NewRecorder()
	a.handleNodes(w, req)

	if w.Result().StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Result().StatusCode)
	}
}
