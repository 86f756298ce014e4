package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"levlyfy/internal/apiclient"
	"levlyfy/internal/audit"
	"levlyfy/internal/auth"
	"levlyfy/internal/calls"
	"levlyfy/internal/contacts"
	"levlyfy/internal/dialer"
	"levlyfy/internal/events"
	"levlyfy/internal/reporting"
	"levlyfy/internal/telephony"
	"levlyfy/internal/telephony/telephonytest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// backend is a canned Levlyfy REST API.
type backend struct {
	meStatus atomic.Int32
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	write := func(body string) { _, _ = w.Write([]byte(body)) }

	switch r.Method + " " + r.URL.Path {
	case "POST /api/auth/login":
		var in auth.Credentials
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			write(`{"message":"Invalid credentials"}`)
			return
		}
		write(`{"status":true,"data":{"user":{"_id":"u1","name":"Sara","email":"sara@example.com"},"token":"tok-1"}}`)
	case "POST /api/auth/signup":
		var in auth.SignupRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"user":  auth.User{ID: "u9", Name: in.Name, Email: in.Email, Role: in.Role},
				"token": "tok-9",
			},
		})
	case "GET /api/auth/me":
		if s := b.meStatus.Load(); s != 0 {
			w.WriteHeader(int(s))
			write(`{"message":"Token expired"}`)
			return
		}
		write(`{"data":{"_id":"u1","name":"Sara","email":"sara@example.com"}}`)
	case "GET /api/telephony/token":
		write(`{"token":"device-token"}`)
	case "POST /api/telephony/call-started":
		write(`{"status":true}`)
	case "GET /api/performance/leaderboard":
		write(`[{"userId":"u1","name":"Sara","callsMade":12,"dealsClosed":2,"totalScore":340},{"userId":"u2","name":"Ali","callsMade":20,"totalScore":120}]`)
	case "GET /api/performance/leaderboard/me":
		write(`{"data":{"userId":"u1","name":"Sara","callsMade":12,"dealsClosed":2,"totalScore":340}}`)
	case "GET /api/call/my-calls":
		write(`{"data":{"calls":[{"_id":"k1","status":"analyzed","score":8}]}}`)
	case "GET /api/contacts":
		write(`{"data":[{"_id":"c1","name":"Omar","phone":"+14155550100"},{"_id":"c2","name":"Zara","phone":"+923001234567"}]}`)
	case "POST /api/contacts":
		var in contacts.Input
		_ = json.NewDecoder(r.Body).Decode(&in)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(contacts.Contact{ID: "c3", Name: in.Name, Phone: in.Phone})
	case "GET /api/contacts/missing":
		w.WriteHeader(http.StatusNotFound)
		write(`{"message":"Contact not found"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		write(`{"message":"no route"}`)
	}
}

type stack struct {
	router  *gin.Engine
	backend *backend
	sess    *auth.Session
	coord   *calls.Coordinator
	dev     *telephonytest.Device
	journal *audit.Service
}

func newStack(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()
	be := &backend{}
	ts := httptest.NewServer(be)
	t.Cleanup(ts.Close)

	sess, err := auth.NewSession(ctx, auth.NewMemoryStore(), nil)
	require.NoError(t, err)

	client, err := apiclient.New(ts.URL+"/api",
		apiclient.WithTokenSource(sess),
		apiclient.WithUnauthorizedHandler(func() { sess.Invalidate(context.Background()) }),
	)
	require.NoError(t, err)

	userID := func() string {
		u, _ := sess.User()
		return u.ID
	}
	journal := audit.NewService(audit.NewMemoryRepo(), nil)
	hub := events.NewHub(nil)
	t.Cleanup(hub.Close)

	dev := &telephonytest.Device{FireRegistered: true, Registered: true}
	coord := calls.NewCoordinator(telephony.NewAPI(client), telephonytest.Factory(dev, nil), calls.Options{
		Observers: []calls.Observer{hub, journal.Observer(userID)},
	})
	t.Cleanup(coord.Close)

	h := Handlers{
		Auth:      auth.NewService(client, sess, nil),
		Reporting: reporting.NewService(reporting.NewAPIRepo(client), nil),
		Contacts:  contacts.NewService(client, "+1", nil),
		Calls:     coord,
		Journal:   journal,
		Views:     dialer.NewServer(ctx, coord, hub, nil),
	}
	r := gin.New()
	h.Register(r, auth.RequireSession(sess))

	return &stack{router: r, backend: be, sess: sess, coord: coord, dev: dev, journal: journal}
}

func (s *stack) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *stack) login(t *testing.T) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/auth/login", `{"email":"sara@example.com","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

type stateBody struct {
	Snapshot calls.Snapshot `json:"snapshot"`
	View     dialer.View    `json:"view"`
	Error    string         `json:"error"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestAuth_LoginGuardsRoutes(t *testing.T) {
	s := newStack(t)

	w := s.do(t, http.MethodGet, "/home", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/auth/login", `{"email":"sara@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/auth/login", `{"email":"sara@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid email or password")

	s.login(t)
	w = s.do(t, http.MethodGet, "/auth/me", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Sara"`)

	w = s.do(t, http.MethodPost, "/auth/logout", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "", s.sess.Token())
}

func TestAuth_BackendRejectionInvalidatesSession(t *testing.T) {
	s := newStack(t)
	s.login(t)

	s.backend.meStatus.Store(http.StatusUnauthorized)
	w := s.do(t, http.MethodGet, "/auth/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "", s.sess.Token())

	w = s.do(t, http.MethodGet, "/home", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReporting_Routes(t *testing.T) {
	s := newStack(t)
	s.login(t)

	w := s.do(t, http.MethodGet, "/leaderboard?metric=calls-made&top=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	lb := decode[reporting.Leaderboard](t, w)
	require.Len(t, lb.Rows, 1)
	assert.Equal(t, "Ali", lb.Rows[0].Name)

	w = s.do(t, http.MethodGet, "/leaderboard?period=yearly", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/leaderboard/me?metric=total-score", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[reporting.MyStats](t, w).Place)

	w = s.do(t, http.MethodGet, "/home", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Sara")

	w = s.do(t, http.MethodGet, "/calls/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[reporting.CallsSummary](t, w).TotalCalls)

	w = s.do(t, http.MethodGet, "/calls/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"k1"`)
}

func TestContacts_Routes(t *testing.T) {
	s := newStack(t)
	s.login(t)

	w := s.do(t, http.MethodGet, "/contacts?q=zar", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Contacts []contacts.Contact `json:"contacts"`
	}](t, w)
	require.Len(t, body.Contacts, 1)
	assert.Equal(t, "c2", body.Contacts[0].ID)

	w = s.do(t, http.MethodPost, "/contacts", `{"name":"","phone":"123"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/contacts", `{"name":"Lina","phone":"(415) 555-0199"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "+14155550199", decode[contacts.Contact](t, w).Phone)

	w = s.do(t, http.MethodGet, "/contacts/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Contact not found")
}

func TestDialer_CallLifecycle(t *testing.T) {
	s := newStack(t)
	s.login(t)

	w := s.do(t, http.MethodPost, "/dialer/call", `{"number":"4155550100"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "Phone device not ready")

	w = s.do(t, http.MethodPost, "/dialer/device", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, calls.StateReady, decode[stateBody](t, w).Snapshot.State)

	w = s.do(t, http.MethodPost, "/dialer/call", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/dialer/call", `{"number":"(415) 555-0100"}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	st := decode[stateBody](t, w)
	assert.Equal(t, calls.StateRinging, st.Snapshot.State)
	assert.Equal(t, "+14155550100", st.Snapshot.TargetAddress)
	assert.True(t, st.View.Controls.Hangup)

	w = s.do(t, http.MethodPost, "/dialer/call", `{"number":"5551234"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/dialer/mute", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	call := s.dev.LastCall()
	require.NotNil(t, call)
	s.dev.Fire(telephony.DeviceEvent{Kind: telephony.CallAccepted, Call: call})

	w = s.do(t, http.MethodPost, "/dialer/mute", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"muted":true}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/dialer/digits", `{"digits":"12#"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "12#", call.Digits())

	w = s.do(t, http.MethodPost, "/dialer/digits", `{"digits":"9x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/dialer/hangup", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, calls.StateIdle, decode[stateBody](t, w).Snapshot.State)

	w = s.do(t, http.MethodGet, "/dialer/state", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ready", decode[stateBody](t, w).View.Label)

	require.Eventually(t, func() bool {
		w := s.do(t, http.MethodGet, "/calls/journal?providerSessionId=CA1", "")
		if w.Code != http.StatusOK {
			return false
		}
		var body struct {
			Entries []audit.Entry `json:"entries"`
		}
		_ = json.Unmarshal(w.Body.Bytes(), &body)
		return len(body.Entries) >= 2 && body.Entries[0].UserID == "u1"
	}, 2*time.Second, 10*time.Millisecond)

	w = s.do(t, http.MethodGet, "/calls/journal?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuth_SignupRoleAndAdminJournal(t *testing.T) {
	s := newStack(t)

	w := s.do(t, http.MethodPost, "/auth/signup", `{"name":"Root","email":"root@example.com","password":"x","role":"owner"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	s.login(t)
	w = s.do(t, http.MethodGet, "/admin/journal", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	require.NoError(t, s.journal.Append(context.Background(), audit.Entry{
		UserID: "u1", From: "ready", To: "connecting", ProviderSessionID: "CA7",
	}))

	w = s.do(t, http.MethodPost, "/auth/signup", `{"name":"Root","email":"root@example.com","password":"x","role":"admin"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/admin/journal?userId=u1", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Entries []audit.Entry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Entries, 1)
	assert.Equal(t, "CA7", body.Entries[0].ProviderSessionID)

	w = s.do(t, http.MethodGet, "/calls/journal", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"entries":[]}`, w.Body.String())
}

func TestCallJournal_RejectsSessionWithoutUserID(t *testing.T) {
	s := newStack(t)
	require.NoError(t, s.journal.Append(context.Background(), audit.Entry{
		UserID: "u1", From: "ready", To: "connecting", ProviderSessionID: "CA7",
	}))
	require.NoError(t, s.sess.Set(context.Background(), auth.Record{
		User:  auth.User{Name: "Nameless"},
		Token: "tok-anon",
	}))

	w := s.do(t, http.MethodGet, "/calls/journal", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotContains(t, w.Body.String(), "CA7")
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{calls.ErrSessionActive, http.StatusConflict},
		{calls.ErrDeviceNotReady, http.StatusServiceUnavailable},
		{calls.ErrInvalidDestination, http.StatusBadRequest},
		{telephony.ErrHoldUnsupported, http.StatusNotImplemented},
		{reporting.ErrInvalidRequest, http.StatusBadRequest},
		{&apiclient.APIError{StatusCode: 500, Message: "db down"}, http.StatusBadGateway},
		{&apiclient.APIError{StatusCode: 404}, http.StatusNotFound},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		code, msg := classify(tc.err)
		assert.Equal(t, tc.code, code, "err %v", tc.err)
		assert.NotEmpty(t, msg)
	}
}
