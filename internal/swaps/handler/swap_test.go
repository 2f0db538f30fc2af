package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"

	"slotswapper/internal/swaps/validator"
	apperrors "slotswapper/pkg/errors"
	httputil "slotswapper/pkg/http"
	"slotswapper/pkg/logger"
	"slotswapper/pkg/middleware"
	"slotswapper/pkg/model"
)

// ──────────────────────────────────────────────
// Mock service
// ──────────────────────────────────────────────

type mockSwapService struct {
	proposeFunc func(ctx context.Context, callerID, mySlotID, theirSlotID string) (*model.SwapRequest, error)
	respondFunc func(ctx context.Context, callerID, requestID string, accept bool) (model.HistoryStatus, error)
	cancelFunc  func(ctx context.Context, callerID, requestID string) (model.HistoryStatus, error)
	liveFunc    func(ctx context.Context, userID string) (*model.LiveRequests, error)
	historyFunc func(ctx context.Context, userID string) ([]*model.HistoryItem, error)
}

func (m *mockSwapService) Propose(ctx context.Context, callerID, mySlotID, theirSlotID string) (*model.SwapRequest, error) {
	if m.proposeFunc != nil {
		return m.proposeFunc(ctx, callerID, mySlotID, theirSlotID)
	}
	return &model.SwapRequest{}, nil
}

func (m *mockSwapService) Respond(ctx context.Context, callerID, requestID string, accept bool) (model.HistoryStatus, error) {
	if m.respondFunc != nil {
		return m.respondFunc(ctx, callerID, requestID, accept)
	}
	return model.HistoryStatusAccepted, nil
}

func (m *mockSwapService) Cancel(ctx context.Context, callerID, requestID string) (model.HistoryStatus, error) {
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, callerID, requestID)
	}
	return model.HistoryStatusCancelled, nil
}

func (m *mockSwapService) ListLiveRequests(ctx context.Context, userID string) (*model.LiveRequests, error) {
	if m.liveFunc != nil {
		return m.liveFunc(ctx, userID)
	}
	return &model.LiveRequests{Incoming: []*model.SwapRequestView{}, Outgoing: []*model.SwapRequestView{}}, nil
}

func (m *mockSwapService) ListHistory(ctx context.Context, userID string) ([]*model.HistoryItem, error) {
	if m.historyFunc != nil {
		return m.historyFunc(ctx, userID)
	}
	return []*model.HistoryItem{}, nil
}

// ──────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────

func newRouter(svc *mockSwapService) *httprouter.Router {
	log := logger.New(logger.Config{Level: "info", Format: logger.JSON, Service: "test"})
	router := httprouter.New()
	NewSwapHandler(svc, validator.NewSwapValidator(log), log).RegisterRoutes(router)
	return router
}

func serve(router http.Handler, method, path, caller, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if caller != "" {
		req = req.WithContext(middleware.WithCallerID(req.Context(), caller))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp httputil.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error %q: %v", rec.Body.String(), err)
	}
	return resp.Code
}

// ──────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────

func TestPropose(t *testing.T) {
	var gotCaller, gotMine, gotTheirs string
	svc := &mockSwapService{
		proposeFunc: func(ctx context.Context, callerID, mySlotID, theirSlotID string) (*model.SwapRequest, error) {
			gotCaller, gotMine, gotTheirs = callerID, mySlotID, theirSlotID
			return &model.SwapRequest{ID: "req-1", Status: model.SwapStatusPending}, nil
		},
	}

	rec := serve(newRouter(svc), http.MethodPost, "/api/v1/swap-request", "alice", `{"my_slot_id":"s1","their_slot_id":"s2"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if gotCaller != "alice" || gotMine != "s1" || gotTheirs != "s2" {
		t.Errorf("service got %s %s %s", gotCaller, gotMine, gotTheirs)
	}

	var resp struct {
		Data model.SwapRequest `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.ID != "req-1" {
		t.Errorf("data = %+v", resp.Data)
	}
}

func TestPropose_Errors(t *testing.T) {
	tests := []struct {
		name       string
		caller     string
		body       string
		svcErr     error
		wantStatus int
		wantCode   string
	}{
		{"unauthenticated", "", `{"my_slot_id":"s1","their_slot_id":"s2"}`, nil, http.StatusUnauthorized, apperrors.CodeUnauthorized},
		{"malformed body", "alice", `{"my_slot_id":`, nil, http.StatusBadRequest, apperrors.CodeInvalidInput},
		{"missing slot", "alice", `{"my_slot_id":"s1"}`, nil, http.StatusUnprocessableEntity, apperrors.CodeValidation},
		{"not found", "alice", `{"my_slot_id":"s1","their_slot_id":"s2"}`, apperrors.NotFoundWithID("Slot", "s2"), http.StatusNotFound, apperrors.CodeNotFound},
		{"forbidden", "alice", `{"my_slot_id":"s1","their_slot_id":"s2"}`, apperrors.Forbidden("nope"), http.StatusForbidden, apperrors.CodeForbidden},
		{"invalid state", "alice", `{"my_slot_id":"s1","their_slot_id":"s2"}`, apperrors.InvalidState("busy"), http.StatusBadRequest, apperrors.CodeInvalidState},
		{"self swap", "alice", `{"my_slot_id":"s1","their_slot_id":"s2"}`, apperrors.InvalidSwap("self"), http.StatusBadRequest, apperrors.CodeInvalidSwap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &mockSwapService{
				proposeFunc: func(ctx context.Context, callerID, mySlotID, theirSlotID string) (*model.SwapRequest, error) {
					called = true
					return nil, tt.svcErr
				},
			}

			rec := serve(newRouter(svc), http.MethodPost, "/api/v1/swap-request", tt.caller, tt.body)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if code := errorCode(t, rec); code != tt.wantCode {
				t.Errorf("code = %s, want %s", code, tt.wantCode)
			}
			if called != (tt.svcErr != nil) {
				t.Errorf("service called = %v", called)
			}
		})
	}
}

func TestRespond(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantAccept bool
		wantCalled bool
	}{
		{"accept bool", `{"accept":true}`, http.StatusOK, true, true},
		{"reject bool", `{"accept":false}`, http.StatusOK, false, true},
		{"accept string", `{"accept":"true"}`, http.StatusOK, true, true},
		{"reject string", `{"accept":"false"}`, http.StatusOK, false, true},
		{"missing accept", `{}`, http.StatusUnprocessableEntity, false, false},
		{"garbage accept", `{"accept":"maybe"}`, http.StatusBadRequest, false, false},
		{"no body", "", http.StatusBadRequest, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var called, gotAccept bool
			var gotRequest string
			svc := &mockSwapService{
				respondFunc: func(ctx context.Context, callerID, requestID string, accept bool) (model.HistoryStatus, error) {
					called, gotAccept, gotRequest = true, accept, requestID
					if accept {
						return model.HistoryStatusAccepted, nil
					}
					return model.HistoryStatusRejected, nil
				},
			}

			rec := serve(newRouter(svc), http.MethodPost, "/api/v1/swap-response/req-9", "bob", tt.body)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if called != tt.wantCalled {
				t.Fatalf("service called = %v, want %v", called, tt.wantCalled)
			}
			if !called {
				return
			}
			if gotAccept != tt.wantAccept || gotRequest != "req-9" {
				t.Errorf("service got accept=%v request=%s", gotAccept, gotRequest)
			}

			var resp struct {
				Data model.StatusResponse `json:"data"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			want := model.HistoryStatusRejected
			if tt.wantAccept {
				want = model.HistoryStatusAccepted
			}
			if resp.Data.Status != want {
				t.Errorf("status = %s, want %s", resp.Data.Status, want)
			}
		})
	}
}

func TestRespond_AlreadyHandled(t *testing.T) {
	svc := &mockSwapService{
		respondFunc: func(ctx context.Context, callerID, requestID string, accept bool) (model.HistoryStatus, error) {
			return "", apperrors.AlreadyHandled("Swap request", requestID)
		},
	}

	rec := serve(newRouter(svc), http.MethodPost, "/api/v1/swap-response/req-1", "bob", `{"accept":true}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp httputil.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != apperrors.CodeInvalidState || resp.Details["reason"] != "already_handled" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestCancel(t *testing.T) {
	var gotCaller, gotRequest string
	svc := &mockSwapService{
		cancelFunc: func(ctx context.Context, callerID, requestID string) (model.HistoryStatus, error) {
			gotCaller, gotRequest = callerID, requestID
			return model.HistoryStatusCancelled, nil
		},
	}

	rec := serve(newRouter(svc), http.MethodPost, "/api/v1/swap-cancel/req-3", "alice", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if gotCaller != "alice" || gotRequest != "req-3" {
		t.Errorf("service got %s %s", gotCaller, gotRequest)
	}
	if !strings.Contains(rec.Body.String(), `"status":"CANCELLED"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestListRequestsAndHistory(t *testing.T) {
	svc := &mockSwapService{
		liveFunc: func(ctx context.Context, userID string) (*model.LiveRequests, error) {
			return &model.LiveRequests{
				Incoming: []*model.SwapRequestView{{SwapRequest: model.SwapRequest{ID: "in-1"}}},
				Outgoing: []*model.SwapRequestView{},
			}, nil
		},
		historyFunc: func(ctx context.Context, userID string) ([]*model.HistoryItem, error) {
			return nil, apperrors.Internal("Failed to retrieve history", nil)
		},
	}
	router := newRouter(svc)

	rec := serve(router, http.MethodGet, "/api/v1/requests", "alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("requests status = %d", rec.Code)
	}
	var live struct {
		Data model.LiveRequests `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &live); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(live.Data.Incoming) != 1 || live.Data.Incoming[0].ID != "in-1" {
		t.Errorf("live = %+v", live.Data)
	}

	rec = serve(router, http.MethodGet, "/api/v1/swap-history", "alice", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("history status = %d, want 500", rec.Code)
	}
}
