package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"slotswapper/internal/storage"
	"slotswapper/internal/swaps/repository"
	"slotswapper/pkg/config"
	apperrors "slotswapper/pkg/errors"
	"slotswapper/pkg/logger"
	"slotswapper/pkg/model"
)

// ────────────────────────────────────────────────
// Mocks
// ────────────────────────────────────────────────

type recordingPublisher struct {
	mu      sync.Mutex
	events  []*model.SwapEvent
	failErr error
}

func (p *recordingPublisher) Publish(ctx context.Context, event *model.SwapEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failErr != nil {
		return p.failErr
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []model.SwapEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]model.SwapEventType, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

type mockHistoryRepository struct {
	appendFunc      func(ctx context.Context, entry *model.HistoryEntry) error
	listForUserFunc func(ctx context.Context, userID string) ([]*model.HistoryEntry, error)
}

func (m *mockHistoryRepository) Append(ctx context.Context, entry *model.HistoryEntry) error {
	return m.appendFunc(ctx, entry)
}

func (m *mockHistoryRepository) ListForUser(ctx context.Context, userID string) ([]*model.HistoryEntry, error) {
	return m.listForUserFunc(ctx, userID)
}

// ────────────────────────────────────────────────
// Fixture
// ────────────────────────────────────────────────

type fixture struct {
	repos *storage.Repositories
	pub   *recordingPublisher
	svc   SwapService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithHistory(t, nil)
}

func newFixtureWithHistory(t *testing.T, history repository.HistoryRepository) *fixture {
	t.Helper()
	repos := storage.InMemory()
	if history == nil {
		history = repos.History
	}
	pub := &recordingPublisher{}
	cfg := &config.Config{Log: logger.Discard()}
	svc := NewSwapService(repos.Slots, repos.SwapRequests, history, repos.Users, repos.Tx, pub, cfg)
	return &fixture{repos: repos, pub: pub, svc: svc}
}

func (f *fixture) user(t *testing.T, name string) string {
	t.Helper()
	u := &model.User{Name: name, Email: name + "@example.com", PasswordHash: "x"}
	if err := f.repos.Users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u.ID
}

func (f *fixture) slot(t *testing.T, ownerID, title string, status model.SlotStatus) string {
	t.Helper()
	start := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	s := &model.Slot{
		OwnerID:   ownerID,
		Title:     title,
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		Status:    status,
	}
	if err := f.repos.Slots.Create(context.Background(), s); err != nil {
		t.Fatalf("create slot: %v", err)
	}
	return s.ID
}

func (f *fixture) get(t *testing.T, id string) *model.Slot {
	t.Helper()
	s, err := f.repos.Slots.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("find slot %s: %v", id, err)
	}
	return s
}

// pair sets up alice and bob with one SWAPPABLE slot each.
func (f *fixture) pair(t *testing.T) (alice, bob, aliceSlot, bobSlot string) {
	t.Helper()
	alice = f.user(t, "alice")
	bob = f.user(t, "bob")
	aliceSlot = f.slot(t, alice, "Team Meeting", model.SlotStatusSwappable)
	bobSlot = f.slot(t, bob, "Focus Block", model.SlotStatusSwappable)
	return
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	if !apperrors.HasCode(err, code) {
		t.Fatalf("error = %v, want code %s", err, code)
	}
}

// ────────────────────────────────────────────────
// Propose
// ────────────────────────────────────────────────

func TestPropose_ReservesBothSlots(t *testing.T) {
	f := newFixture(t)
	alice, bob, aliceSlot, bobSlot := f.pair(t)

	req, err := f.svc.Propose(context.Background(), alice, aliceSlot, bobSlot)
	if err != nil {
		t.Fatalf("Propose() error = %v", err)
	}

	if req.Status != model.SwapStatusPending {
		t.Errorf("status = %s, want PENDING", req.Status)
	}
	if req.RequesterID != alice || req.ResponderID != bob {
		t.Errorf("requester/responder = %s/%s", req.RequesterID, req.ResponderID)
	}
	for _, id := range []string{aliceSlot, bobSlot} {
		if got := f.get(t, id).Status; got != model.SlotStatusSwapPending {
			t.Errorf("slot %s status = %s, want SWAP_PENDING", id, got)
		}
	}
	if got := f.pub.types(); len(got) != 1 || got[0] != model.SwapEventProposed {
		t.Errorf("events = %v, want [swap.proposed]", got)
	}
}

func TestPropose_Rejections(t *testing.T) {
	f := newFixture(t)
	alice, bob, aliceSlot, bobSlot := f.pair(t)
	aliceBusy := f.slot(t, alice, "Dentist", model.SlotStatusBusy)
	aliceSecond := f.slot(t, alice, "Lunch", model.SlotStatusSwappable)
	bobBusy := f.slot(t, bob, "Gym", model.SlotStatusBusy)

	tests := []struct {
		name        string
		caller      string
		mySlot      string
		theirSlot   string
		wantErrCode string
	}{
		{"empty my slot", alice, "", bobSlot, apperrors.CodeInvalidInput},
		{"empty their slot", alice, aliceSlot, "", apperrors.CodeInvalidInput},
		{"same slot twice", alice, aliceSlot, aliceSlot, apperrors.CodeInvalidSwap},
		{"someone else's slot twice", bob, aliceSlot, aliceSlot, apperrors.CodeForbidden},
		{"unknown slot twice", alice, "missing", "missing", apperrors.CodeNotFound},
		{"unknown my slot", alice, "missing", bobSlot, apperrors.CodeNotFound},
		{"unknown their slot", alice, aliceSlot, "missing", apperrors.CodeNotFound},
		{"caller does not own my slot", bob, aliceSlot, bobSlot, apperrors.CodeForbidden},
		{"caller owns their slot", alice, aliceSlot, aliceSecond, apperrors.CodeInvalidSwap},
		{"my slot busy", alice, aliceBusy, bobSlot, apperrors.CodeInvalidState},
		{"their slot busy", alice, aliceSlot, bobBusy, apperrors.CodeInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Propose(context.Background(), tt.caller, tt.mySlot, tt.theirSlot)
			wantCode(t, err, tt.wantErrCode)
		})
	}

	if got := f.get(t, aliceSlot).Status; got != model.SlotStatusSwappable {
		t.Errorf("rejected proposals changed slot status to %s", got)
	}
	if len(f.pub.types()) != 0 {
		t.Errorf("events published for rejected proposals: %v", f.pub.types())
	}
}

func TestPropose_AcceptsAnyIDSpelling(t *testing.T) {
	f := newFixture(t)
	alice, bob, aliceSlot, bobSlot := f.pair(t)
	ctx := context.Background()

	req, err := f.svc.Propose(ctx, alice, strings.ToUpper(aliceSlot), "{"+bobSlot+"}")
	if err != nil {
		t.Fatalf("Propose() error = %v", err)
	}
	if req.MySlotID != aliceSlot || req.TheirSlotID != bobSlot {
		t.Errorf("stored slot ids = %s/%s, want %s/%s", req.MySlotID, req.TheirSlotID, aliceSlot, bobSlot)
	}

	_, err = f.svc.Propose(ctx, alice, aliceSlot, strings.ToUpper(aliceSlot))
	wantCode(t, err, apperrors.CodeInvalidSwap)

	outcome, err := f.svc.Respond(ctx, bob, "urn:uuid:"+req.ID, true)
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if outcome != model.HistoryStatusAccepted {
		t.Errorf("outcome = %s, want ACCEPTED", outcome)
	}
	if got := f.get(t, aliceSlot).OwnerID; got != bob {
		t.Errorf("alice's slot owner = %s, want bob", got)
	}
	if _, err := f.repos.SwapRequests.FindByID(ctx, req.ID); err == nil {
		t.Error("resolved request still stored")
	}
}

func TestPropose_SlotCannotBeInTwoRequests(t *testing.T) {
	f := newFixture(t)
	alice, _, aliceSlot, bobSlot := f.pair(t)
	carol := f.user(t, "carol")
	carolSlot := f.slot(t, carol, "Review", model.SlotStatusSwappable)

	if _, err := f.svc.Propose(context.Background(), alice, aliceSlot, bobSlot); err != nil {
		t.Fatalf("first Propose() error = %v", err)
	}

	_, err := f.svc.Propose(context.Background(), carol, carolSlot, bobSlot)
	wantCode(t, err, apperrors.CodeInvalidState)

	if got := f.get(t, carolSlot).Status; got != model.SlotStatusSwappable {
		t.Errorf("carol slot status = %s, want SWAPPABLE", got)
	}
}

func TestPropose_ConcurrentRaceHasOneWinner(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	target := f.slot(t, owner, "Popular", model.SlotStatusSwappable)

	const contenders = 8
	type contender struct{ user, slot string }
	cs := make([]contender, contenders)
	for i := range cs {
		u := f.user(t, fmt.Sprintf("user%d", i))
		cs[i] = contender{user: u, slot: f.slot(t, u, "Offer", model.SlotStatusSwappable)}
	}

	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i, c := range cs {
		wg.Add(1)
		go func(i int, c contender) {
			defer wg.Done()
			_, errs[i] = f.svc.Propose(context.Background(), c.user, c.slot, target)
		}(i, c)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case apperrors.HasCode(err, apperrors.CodeInvalidState):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("successful proposals = %d, want 1", wins)
	}

	incoming, err := f.svc.ListLiveRequests(context.Background(), owner)
	if err != nil {
		t.Fatalf("ListLiveRequests() error = %v", err)
	}
	if len(incoming.Incoming) != 1 {
		t.Errorf("incoming = %d, want 1", len(incoming.Incoming))
	}
}

// ────────────────────────────────────────────────
// Respond
// ────────────────────────────────────────────────

func TestRespond_AcceptExchangesOwners(t *testing.T) {
	f := newFixture(t)
	alice, bob, aliceSlot, bobSlot := f.pair(t)
	req, err := f.svc.Propose(context.Background(), alice, aliceSlot, bobSlot)
	if err != nil {
		t.Fatalf("Propose() error = %v", err)
	}

	status, err := f.svc.Respond(context.Background(), bob, req.ID, true)
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if status != model.HistoryStatusAccepted {
		t.Errorf("status = %s, want ACCEPTED", status)
	}

	mine, theirs := f.get(t, aliceSlot), f.get(t, bobSlot)
	if mine.OwnerID != bob || theirs.OwnerID != alice {
		t.Errorf("owners = %s/%s, want swapped", mine.OwnerID, theirs.OwnerID)
	}
	if mine.Status != model.SlotStatusBusy || theirs.Status != model.SlotStatusBusy {
		t.Errorf("statuses = %s/%s, want BUSY/BUSY", mine.Status, theirs.Status)
	}

	if _, err := f.repos.SwapRequests.FindByID(context.Background(), req.ID); err == nil {
		t.Error("resolved request still stored")
	}

	history, err := f.svc.ListHistory(context.Background(), alice)
	if err != nil {
		t.Fatalf("ListHistory() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history = %d entries, want 1", len(history))
	}
	h := history[0]
	if h.Status != model.HistoryStatusAccepted || h.MySlotTitle != "Team Meeting" || h.TheirSlotTitle != "Focus Block" {
		t.Errorf("history entry = %+v", h.HistoryEntry)
	}
	if h.Role != model.RoleRequester || h.Counterparty == nil || h.Counterparty.Name != "bob" {
		t.Errorf("role/counterparty = %s/%+v", h.Role, h.Counterparty)
	}

	if got := f.pub.types(); len(got) != 2 || got[1] != model.SwapEventAccepted {
		t.Errorf("events = %v", got)
	}
}

func TestRespond_RejectReleasesSlots(t *testing.T) {
	f := newFixture(t)
	alice, bob, aliceSlot, bobSlot := f.pair(t)
	req, _ := f.svc.Propose(context.Background(), alice, aliceSlot, bobSlot)

	status, err := f.svc.Respond(context.Background(), bob, req.ID, false)
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if status != model.HistoryStatusRejected {
		t.Errorf("status = %s, want REJECTED", status)
	}

	for id, owner := range map[string]string{aliceSlot: alice, bobSlot: bob} {
		s := f.get(t, id)
		if s.OwnerID != owner || s.Status != model.SlotStatusSwappable {
			t.Errorf("slot %s = owner %s status %s", id, s.OwnerID, s.Status)
		}
	}

	history, _ := f.svc.ListHistory(context.Background(), bob)
	if len(history) != 1 || history[0].Status != model.HistoryStatusRejected || history[0].Role != model.RoleResponder {
		t.Errorf("history = %+v", history)
	}
}

func TestRespond_RoleEnforcement(t *testing.T) {
	f := newFixture(t)
	alice, _, aliceSlot, bobSlot := f.pair(t)
	mallory := f.user(t, "mallory")
	req, _ := f.svc.Propose(context.Background(), alice, aliceSlot, bobSlot)

	tests := []struct {
		name   string
		caller string
	}{
		{"requester cannot answer", alice},
		{"third party cannot answer", mallory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Respond(context.Background(), tt.caller, req.ID, true)
			wantCode(t, err, apperrors.CodeForbidden)
		})
	}

	if got := f.get(t, aliceSlot); got.OwnerID != alice || got.Status != model.SlotStatusSwapPending {
		t.Errorf("slot changed after forbidden response: %+v", got)
	}
}

func TestRespond_UnknownRequest(t *testing.T) {
	f := newFixture(t)
	bob := f.user(t, "bob")

	_, err := f.svc.Respond(context.Background(), bob, "no-such-request", true)
	wantCode(t, err, apperrors.CodeNotFound)

	_, err = f.svc.Respond(context.Background(), bob, "", true)
	wantCode(t, err, apperrors.CodeInvalidInput)
}

func TestRespond_SecondResolutionFails(t *testing.T) {
	f := newFixture(t)
	alice, bob, aliceSlot, bobSlot := f.pair(t)
	req, _ := f.svc.Propose(context.Background(), alice, aliceSlot, bobSlot)

	if _, err := f.svc.Respond(context.Background(), bob, req.ID, true); err != nil {
		t.Fatalf("first Respond() error = %v", err)
	}
	_, err := f.svc.Respond(context.Background(), bob, req.ID, false)
	wantCode(t, err, apperrors.CodeNotFound)

	if got := f.get(t, aliceSlot).OwnerID; got != bob {
		t.Errorf("owner after second response = %s, want bob", got)
	}
}

func TestRespond_ConcurrentAcceptsSucceedOnce(t *testing.T) {
	f := newFixture(t)
	alice, bob, aliceSlot, bobSlot := f.pair(t)
	req, _ := f.svc.Propose(context.Background(), alice, aliceSlot, bobSlot)

	const attempts = 5
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Respond(context.Background(), bob, req.ID, true)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case apperrors.HasCode(err, apperrors.CodeNotFound), apperrors.HasCode(err, apperrors.CodeInvalidState):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("successful accepts = %d, want 1", wins)
	}

	history, _ := f.svc.ListHistory(context.Background(), alice)
	if len(history) != 1 {
		t.Errorf("history entries = %d, want 1", len(history))
	}
	if f.get(t, aliceSlot).OwnerID != bob || f.get(t, bobSlot).OwnerID != alice {
		t.Error("owners not exchanged exactly once")
	}
}

func TestRespond_FailedHistoryWriteRollsBack(t *testing.T) {
	failing := &mockHistoryRepository{
		appendFunc: func(ctx context.Context, entry *model.HistoryEntry) error {
			return errors.New("disk full")
		},
		listForUserFunc: func(ctx context.Context, userID string) ([]*model.HistoryEntry, error) {
			return nil, nil
		},
	}
	f := newFixtureWithHistory(t, failing)
	alice, bob, aliceSlot, bobSlot := f.pair(t)
	req, err := f.svc.Propose(context.Background(), alice, aliceSlot, bobSlot)
	if err != nil {
		t.Fatalf("Propose() error = %v", err)
	}

	_, err = f.svc.Respond(context.Background(), bob, req.ID, true)
	wantCode(t, err, apperrors.CodeInternal)

	stored, err := f.repos.SwapRequests.FindByID(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("request lost after rollback: %v", err)
	}
	if stored.Status != model.SwapStatusPending {
		t.Errorf("request status = %s, want PENDING", stored.Status)
	}
	for id, owner := range map[string]string{aliceSlot: alice, bobSlot: bob} {
		s := f.get(t, id)
		if s.OwnerID != owner || s.Status != model.SlotStatusSwapPending {
			t.Errorf("slot %s = owner %s status %s, want unchanged", id, s.OwnerID, s.Status)
		}
	}
	if got := f.pub.types(); len(got) != 1 {
		t.Errorf("events = %v, want only the proposal", got)
	}
}

func TestRespond_PublishFailureDoesNotFailCommit(t *testing.T) {
	f := newFixture(t)
	alice, bob, aliceSlot, bobSlot := f.pair(t)
	req, _ := f.svc.Propose(context.Background(), alice, aliceSlot, bobSlot)

	f.pub.failErr = errors.New("broker down")
	if _, err := f.svc.Respond(context.Background(), bob, req.ID, true); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if f.get(t, aliceSlot).OwnerID != bob {
		t.Error("swap not committed")
	}
}

// ────────────────────────────────────────────────
// Cancel
// ────────────────────────────────────────────────

func TestCancel(t *testing.T) {
	f := newFixture(t)
	alice, bob, aliceSlot, bobSlot := f.pair(t)
	req, _ := f.svc.Propose(context.Background(), alice, aliceSlot, bobSlot)

	_, err := f.svc.Cancel(context.Background(), bob, req.ID)
	wantCode(t, err, apperrors.CodeForbidden)

	status, err := f.svc.Cancel(context.Background(), alice, req.ID)
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if status != model.HistoryStatusCancelled {
		t.Errorf("status = %s, want CANCELLED", status)
	}
	for _, id := range []string{aliceSlot, bobSlot} {
		if got := f.get(t, id).Status; got != model.SlotStatusSwappable {
			t.Errorf("slot %s status = %s, want SWAPPABLE", id, got)
		}
	}

	_, err = f.svc.Respond(context.Background(), bob, req.ID, true)
	wantCode(t, err, apperrors.CodeNotFound)

	if got := f.pub.types(); got[len(got)-1] != model.SwapEventCancelled {
		t.Errorf("events = %v", got)
	}
}

// ────────────────────────────────────────────────
// Listings
// ────────────────────────────────────────────────

func TestListLiveRequests(t *testing.T) {
	f := newFixture(t)
	alice, bob, aliceSlot, bobSlot := f.pair(t)
	bobSecond := f.slot(t, bob, "Planning", model.SlotStatusSwappable)
	aliceSecond := f.slot(t, alice, "Sync", model.SlotStatusSwappable)

	first, _ := f.svc.Propose(context.Background(), alice, aliceSlot, bobSlot)
	second, _ := f.svc.Propose(context.Background(), bob, bobSecond, aliceSecond)

	live, err := f.svc.ListLiveRequests(context.Background(), alice)
	if err != nil {
		t.Fatalf("ListLiveRequests() error = %v", err)
	}

	if len(live.Outgoing) != 1 || live.Outgoing[0].ID != first.ID {
		t.Fatalf("outgoing = %+v", live.Outgoing)
	}
	if len(live.Incoming) != 1 || live.Incoming[0].ID != second.ID {
		t.Fatalf("incoming = %+v", live.Incoming)
	}
	out := live.Outgoing[0]
	if out.MySlot == nil || out.MySlot.Title != "Team Meeting" || out.TheirSlot == nil || out.TheirSlot.Title != "Focus Block" {
		t.Errorf("embedded slots = %+v / %+v", out.MySlot, out.TheirSlot)
	}

	empty, err := f.svc.ListLiveRequests(context.Background(), f.user(t, "nobody"))
	if err != nil {
		t.Fatalf("ListLiveRequests() error = %v", err)
	}
	if empty.Incoming == nil || empty.Outgoing == nil || len(empty.Incoming)+len(empty.Outgoing) != 0 {
		t.Errorf("empty listing = %+v, want empty non-nil lists", empty)
	}
}

func TestListHistory_NewestFirst(t *testing.T) {
	f := newFixture(t)
	alice, bob, aliceSlot, bobSlot := f.pair(t)

	req, _ := f.svc.Propose(context.Background(), alice, aliceSlot, bobSlot)
	if _, err := f.svc.Respond(context.Background(), bob, req.ID, false); err != nil {
		t.Fatalf("reject: %v", err)
	}
	req, _ = f.svc.Propose(context.Background(), alice, aliceSlot, bobSlot)
	if _, err := f.svc.Respond(context.Background(), bob, req.ID, true); err != nil {
		t.Fatalf("accept: %v", err)
	}

	history, err := f.svc.ListHistory(context.Background(), bob)
	if err != nil {
		t.Fatalf("ListHistory() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d entries, want 2", len(history))
	}
	if history[0].Status != model.HistoryStatusAccepted || history[1].Status != model.HistoryStatusRejected {
		t.Errorf("order = %s, %s; want ACCEPTED then REJECTED", history[0].Status, history[1].Status)
	}
	for _, item := range history {
		if item.Role != model.RoleResponder || item.Counterparty.ID != alice {
			t.Errorf("item = role %s counterparty %+v", item.Role, item.Counterparty)
		}
	}
}
