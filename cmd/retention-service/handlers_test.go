package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ufukkilic-eva/cancellation/internal/catalog"
	"github.com/ufukkilic-eva/cancellation/internal/confirmation"
	"github.com/ufukkilic-eva/cancellation/internal/funnel"
	"github.com/ufukkilic-eva/cancellation/internal/websocket"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type testService struct {
	router  *mux.Router
	billing *httptest.Server
}

// newTestService wires the service with in-memory sessions, no database,
// and a stubbed billing backend.
func newTestService(t *testing.T, billingHandler http.HandlerFunc) *testService {
	t.Helper()

	if billingHandler == nil {
		billingHandler = func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(ApplyConfirmationResponse{
				Success:    true,
				MutationID: "mut_test1234",
				Status:     "applied",
			})
		}
	}
	billingServer := httptest.NewServer(billingHandler)
	t.Cleanup(billingServer.Close)

	cat := catalog.Default()
	builder := confirmation.NewBuilder(cat)
	store := NewMemorySessionStore()
	hub := websocket.NewHub(log.New(io.Discard, "", 0))
	logger := log.New(io.Discard, "", 0)
	clock := func() time.Time { return testNow }

	handler := NewHandler(cat, builder, nil, nil, nil, hub, clock, logger)
	sessionHandler := NewSessionHandler(store, builder, NewBillingClient(billingServer.URL), nil, hub, clock, logger)

	r := mux.NewRouter()
	r.HandleFunc("/health", handler.Health).Methods("GET")
	r.HandleFunc("/plans", handler.ListPlans).Methods("GET")
	r.HandleFunc("/plans/{id}", handler.GetPlan).Methods("GET")
	r.HandleFunc("/confirmations/preview", handler.Preview).Methods("POST")
	r.HandleFunc("/funnels/{funnel}/sessions", sessionHandler.CreateSession).Methods("POST")
	r.HandleFunc("/sessions/{id}", sessionHandler.GetSession).Methods("GET")
	r.HandleFunc("/sessions/{id}/select", sessionHandler.Select).Methods("PUT")
	r.HandleFunc("/sessions/{id}/proceed", sessionHandler.Proceed).Methods("POST")
	r.HandleFunc("/sessions/{id}/back", sessionHandler.Back).Methods("POST")
	r.HandleFunc("/sessions/{id}/confirm", sessionHandler.Confirm).Methods("POST")
	r.HandleFunc("/sessions/{id}/abort", sessionHandler.Abort).Methods("POST")
	r.HandleFunc("/stats/funnels", handler.GetFunnelStats).Methods("GET")

	return &testService{router: r, billing: billingServer}
}

func (ts *testService) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader = bytes.NewReader([]byte("{}"))
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) *SessionResponse {
	t.Helper()
	var resp SessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Session)
	return &resp
}

func TestPreviewEndpoint(t *testing.T) {
	ts := newTestService(t, nil)

	rec := ts.do(t, "POST", "/confirmations/preview", PreviewRequest{
		Funnel:                "growth",
		ReimbursementAttached: true,
		AnchorDate:            "2026-03-10",
		Choice:                "not_interested",
		KeepReimbursement:     true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var plan confirmation.Plan
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&plan))
	assert.Equal(t, funnel.ActionCancel, plan.Kind)
	assert.Equal(t, confirmation.ModePaid, plan.Mode)
	assert.Equal(t, 49.0, plan.TotalToday)
	assert.Contains(t, plan.AuxMessage, "15%")
}

func TestPreviewIsDeterministic(t *testing.T) {
	ts := newTestService(t, nil)
	req := PreviewRequest{
		Funnel:     "scaleads",
		IsTrial:    true,
		AnchorDate: "2026-03-10",
		Choice:     "consider_growth",
	}

	first := ts.do(t, "POST", "/confirmations/preview", req)
	second := ts.do(t, "POST", "/confirmations/preview", req)
	require.Equal(t, http.StatusOK, first.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestPreviewRejectsInvalidSelection(t *testing.T) {
	ts := newTestService(t, nil)

	rec := ts.do(t, "POST", "/confirmations/preview", PreviewRequest{
		Funnel: "growth",
		Choice: "consider_growth",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	assert.Equal(t, "INVALID_SELECTION", errResp.Code)
}

func TestPlansEndpoints(t *testing.T) {
	ts := newTestService(t, nil)

	rec := ts.do(t, "GET", "/plans", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listResp struct {
		Plans []catalog.Plan `json:"plans"`
		Total int            `json:"total"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listResp))
	assert.Equal(t, 3, listResp.Total)

	rec = ts.do(t, "GET", "/plans/scaleads", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, "GET", "/plans/enterprise", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionFullFlow(t *testing.T) {
	ts := newTestService(t, nil)

	// Open a paid growth session
	rec := ts.do(t, "POST", "/funnels/growth/sessions", CreateSessionRequest{
		ReimbursementAttached: true,
		AnchorDate:            "2026-03-10",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	sess := decodeSession(t, rec).Session
	assert.Equal(t, funnel.StateIdle, sess.State)
	id := sess.ID

	// Select full cancel keeping reimbursement
	rec = ts.do(t, "PUT", "/sessions/"+id+"/select", SelectRequest{
		Choice:            "not_interested",
		KeepReimbursement: true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	sess = decodeSession(t, rec).Session
	assert.Equal(t, funnel.StateChoiceSelected, sess.State)

	// Proceed builds the confirmation plan
	rec = ts.do(t, "POST", "/sessions/"+id+"/proceed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sess = decodeSession(t, rec).Session
	assert.Equal(t, funnel.StateConfirmationReady, sess.State)
	require.NotNil(t, sess.Plan)
	assert.Equal(t, funnel.ActionCancel, sess.Plan.Kind)
	assert.Equal(t, 49.0, sess.Plan.TotalToday)
	assert.NotEmpty(t, sess.ConfirmationID)

	// Going back discards the plan and restarts the funnel
	rec = ts.do(t, "POST", "/sessions/"+id+"/back", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sess = decodeSession(t, rec).Session
	assert.Equal(t, funnel.StateIdle, sess.State)
	assert.Nil(t, sess.Selection)
	assert.Nil(t, sess.Plan)
	assert.Empty(t, sess.ConfirmationID)

	// Run the funnel again and confirm
	rec = ts.do(t, "PUT", "/sessions/"+id+"/select", SelectRequest{Choice: "not_interested"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, "POST", "/sessions/"+id+"/proceed", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, "POST", "/sessions/"+id+"/confirm", ConfirmRequest{Acknowledged: true})
	require.Equal(t, http.StatusOK, rec.Code)

	var confirmResp ConfirmResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&confirmResp))
	assert.Equal(t, funnel.StateConfirmed, confirmResp.Session.State)
	assert.Equal(t, "mut_test1234", confirmResp.MutationID)

	// Terminal sessions reject further events
	rec = ts.do(t, "POST", "/sessions/"+id+"/abort", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestConfirmRequiresAcknowledgement(t *testing.T) {
	ts := newTestService(t, nil)

	rec := ts.do(t, "POST", "/funnels/scaleads/sessions", CreateSessionRequest{AnchorDate: "2026-03-10"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeSession(t, rec).Session.ID

	ts.do(t, "PUT", "/sessions/"+id+"/select", SelectRequest{Choice: "consider_growth"})
	ts.do(t, "POST", "/sessions/"+id+"/proceed", nil)

	rec = ts.do(t, "POST", "/sessions/"+id+"/confirm", ConfirmRequest{Acknowledged: false})
	require.Equal(t, http.StatusConflict, rec.Code)

	// State stays ConfirmationReady
	rec = ts.do(t, "GET", "/sessions/"+id, nil)
	sess := decodeSession(t, rec).Session
	assert.Equal(t, funnel.StateConfirmationReady, sess.State)
}

func TestConfirmBillingFailureDoesNotAdvance(t *testing.T) {
	ts := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(ApplyConfirmationResponse{
			Success:      false,
			ErrorCode:    "PAYMENT_DECLINED",
			ErrorMessage: "Proration charge declined by issuing bank",
		})
	})

	rec := ts.do(t, "POST", "/funnels/growth/sessions", CreateSessionRequest{AnchorDate: "2026-03-10"})
	id := decodeSession(t, rec).Session.ID
	ts.do(t, "PUT", "/sessions/"+id+"/select", SelectRequest{Choice: "not_interested"})
	ts.do(t, "POST", "/sessions/"+id+"/proceed", nil)

	rec = ts.do(t, "POST", "/sessions/"+id+"/confirm", ConfirmRequest{Acknowledged: true})
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	assert.Equal(t, "BILLING_ERROR", errResp.Code)

	// The session can be confirmed again once billing recovers
	rec = ts.do(t, "GET", "/sessions/"+id, nil)
	sess := decodeSession(t, rec).Session
	assert.Equal(t, funnel.StateConfirmationReady, sess.State)
	assert.Empty(t, sess.MutationID)
}

func TestContinueFinishesWithoutConfirmation(t *testing.T) {
	ts := newTestService(t, nil)

	rec := ts.do(t, "POST", "/funnels/scaleads/sessions", CreateSessionRequest{
		IsTrial:    true,
		AnchorDate: "2026-03-10",
	})
	id := decodeSession(t, rec).Session.ID

	rec = ts.do(t, "PUT", "/sessions/"+id+"/select", SelectRequest{Choice: "continue"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, "POST", "/sessions/"+id+"/proceed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeSession(t, rec)
	assert.Equal(t, funnel.StateAborted, resp.Session.State)
	assert.Equal(t, "Current plan continues unchanged", resp.Message)
	assert.Nil(t, resp.Session.Plan)
}

func TestSelectRejectsForeignChoice(t *testing.T) {
	ts := newTestService(t, nil)

	rec := ts.do(t, "POST", "/funnels/growth/sessions", CreateSessionRequest{AnchorDate: "2026-03-10"})
	id := decodeSession(t, rec).Session.ID

	rec = ts.do(t, "PUT", "/sessions/"+id+"/select", SelectRequest{Choice: "consider_growth"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	assert.Equal(t, "INVALID_SELECTION", errResp.Code)
}

func TestProceedWithoutSelection(t *testing.T) {
	ts := newTestService(t, nil)

	rec := ts.do(t, "POST", "/funnels/growth/sessions", CreateSessionRequest{AnchorDate: "2026-03-10"})
	id := decodeSession(t, rec).Session.ID

	rec = ts.do(t, "POST", "/sessions/"+id+"/proceed", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateSessionValidation(t *testing.T) {
	ts := newTestService(t, nil)

	rec := ts.do(t, "POST", "/funnels/enterprise/sessions", CreateSessionRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, "POST", "/funnels/growth/sessions", CreateSessionRequest{AnchorDate: "10-03-2026"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, "POST", "/funnels/growth/sessions", CreateSessionRequest{ElapsedDays: 45})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionNotFound(t *testing.T) {
	ts := newTestService(t, nil)

	rec := ts.do(t, "GET", "/sessions/does-not-exist", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	assert.Equal(t, "SESSION_NOT_FOUND", errResp.Code)
}

func TestStatsUnavailableWithoutDatabase(t *testing.T) {
	ts := newTestService(t, nil)

	rec := ts.do(t, "GET", "/stats/funnels", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestService(t, nil)

	rec := ts.do(t, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
	assert.Equal(t, "retention-service", health["service"])
	assert.Equal(t, "not configured", health["database"])
	assert.Equal(t, "not configured", health["cache"])
}
