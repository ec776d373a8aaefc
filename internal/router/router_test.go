package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"raffle-storefront/internal/cache"
	"raffle-storefront/internal/gateway"
	"raffle-storefront/internal/handler"
	"raffle-storefront/internal/middleware"
	"raffle-storefront/internal/repository"
	"raffle-storefront/internal/service"
	"raffle-storefront/internal/session"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const remoteURL = "http://raffles.test"

// remoteRaffle is an in-memory raffle service behind httpmock.
type remoteRaffle struct {
	mu      sync.Mutex
	owner   string
	active  bool
	status  map[int]string
	holder  map[int]string
	reject  map[int]string // number -> rejection message
	sold    []int
	tokenTo map[string]string // remote token -> actor id
}

func newRemoteRaffle() *remoteRaffle {
	return &remoteRaffle{
		owner:  "u-owner",
		active: true,
		status: map[int]string{1: "active", 2: "active", 3: "sold", 4: "reserved"},
		holder: map[int]string{4: "someone-else"},
		reject: map[int]string{},
		tokenTo: map[string]string{
			"remote-buyer": "u-buyer",
			"remote-owner": "u-owner",
		},
	}
}

func (rr *remoteRaffle) actor(req *http.Request) string {
	return rr.tokenTo[strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")]
}

func ok(data interface{}) (*http.Response, error) {
	return httpmock.NewJsonResponse(200, map[string]interface{}{"success": true, "data": data})
}

func rejected(status int, msg string) (*http.Response, error) {
	return httpmock.NewJsonResponse(status, map[string]interface{}{"success": false, "message": msg})
}

// numberOf runs on the cell's goroutine, so it must not call t.FailNow.
func numberOf(req *http.Request) int {
	var body struct {
		Number string `json:"number"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return -1
	}
	n, err := strconv.Atoi(body.Number)
	if err != nil {
		return -1
	}
	return n
}

func (rr *remoteRaffle) register(t *testing.T) {
	httpmock.RegisterResponder(http.MethodPost, remoteURL+"/v1/auth/login",
		func(req *http.Request) (*http.Response, error) {
			var body map[string]string
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			switch body["email"] {
			case "buyer@example.com":
				return ok(map[string]interface{}{"token": "remote-buyer", "user": map[string]string{"id": "u-buyer", "name": "Buyer"}})
			case "owner@example.com":
				return ok(map[string]interface{}{"token": "remote-owner", "user": map[string]string{"id": "u-owner", "name": "Owner"}})
			}
			return rejected(401, "invalid credentials")
		})

	httpmock.RegisterResponder(http.MethodGet, remoteURL+"/v1/raffles/r1",
		func(req *http.Request) (*http.Response, error) {
			rr.mu.Lock()
			defer rr.mu.Unlock()
			return ok(map[string]interface{}{"id": "r1", "name": "Spring", "ownerId": rr.owner, "active": rr.active, "totalNumbers": 4})
		})

	httpmock.RegisterResponder(http.MethodGet, `=~^`+remoteURL+`/v1/raffles/r1/numbers`,
		func(req *http.Request) (*http.Response, error) {
			rr.mu.Lock()
			defer rr.mu.Unlock()
			var data []map[string]interface{}
			for n := 1; n <= 4; n++ {
				data = append(data, map[string]interface{}{
					"number":     n,
					"status":     rr.status[n],
					"reservedBy": rr.holder[n],
				})
			}
			return httpmock.NewJsonResponse(200, map[string]interface{}{
				"success": true,
				"data":    data,
				"meta":    map[string]interface{}{"page": 1, "limit": 100, "total": 4},
			})
		})

	mutate := func(next string) httpmock.Responder {
		return func(req *http.Request) (*http.Response, error) {
			n := numberOf(req)
			rr.mu.Lock()
			defer rr.mu.Unlock()
			if msg, ok := rr.reject[n]; ok {
				return rejected(409, msg)
			}
			rr.status[n] = next
			switch next {
			case "reserved":
				rr.holder[n] = rr.actor(req)
			case "active":
				delete(rr.holder, n)
			case "sold":
				rr.sold = append(rr.sold, n)
			}
			return httpmock.NewJsonResponse(200, map[string]interface{}{"success": true})
		}
	}
	httpmock.RegisterResponder(http.MethodPost, remoteURL+"/v1/raffles/r1/numbers/reserve", mutate("reserved"))
	httpmock.RegisterResponder(http.MethodPost, remoteURL+"/v1/raffles/r1/numbers/unreserve", mutate("active"))
	httpmock.RegisterResponder(http.MethodPost, remoteURL+"/v1/raffles/r1/numbers/sold", mutate("sold"))
}

type testApp struct {
	router   http.Handler
	remote   *remoteRaffle
	activity *service.ActivityService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)

	remote := newRemoteRaffle()
	remote.register(t)

	repo, err := repository.NewSQLiteActivityRepository(filepath.Join(t.TempDir(), "activity.db"))
	require.NoError(t, err)
	activity := service.NewActivityService(repo)
	t.Cleanup(func() {
		activity.Wait()
		repo.Close()
	})

	c := cache.NewMemoryCache(time.Minute)
	t.Cleanup(func() { c.Close() })

	gw := gateway.NewClient(remoteURL, time.Second, 100)
	sf := service.NewStorefront(service.StorefrontConfig{
		Auth: gw,
		APIFor: func(src gateway.TokenSource) service.RaffleAPI {
			return gw.ForSession(src)
		},
		Sessions:       session.NewStore(c, time.Hour),
		Journal:        activity,
		RequestID:      middleware.GetRequestID,
		CloseDelay:     time.Hour,
		MaxConcurrency: 4,
	})
	t.Cleanup(sf.Close)

	r := New(Config{
		Handler:         handler.New("raffle-storefront", "test", nil),
		AuthHandler:     handler.NewAuthHandler(sf),
		BoardHandler:    handler.NewBoardHandler(sf),
		ActivityHandler: handler.NewActivityHandler(activity),
		AdminHandler:    handler.NewAdminHandler(sf, activity, "admin-key", "sqlite"),
		AuthMiddleware:  middleware.NewAuthMiddleware(middleware.AuthConfig{Sessions: sf}),
	})
	return &testApp{router: r, remote: remote, activity: activity}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Meta    *struct {
		Page  int   `json:"page"`
		Limit int   `json:"limit"`
		Total int64 `json:"total"`
	} `json:"meta"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *testApp) do(t *testing.T, method, path, token, body string, headers ...string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("X-Token", token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func (a *testApp) login(t *testing.T, email string) string {
	t.Helper()
	status, env := a.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"email":"`+email+`","password":"secret"}`)
	require.Equal(t, http.StatusCreated, status)
	var out handler.LoginResponse
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.True(t, strings.HasPrefix(out.Token, session.TokenPrefix))
	return out.Token
}

type boardView struct {
	Owner     bool   `json:"owner"`
	Disabled  bool   `json:"disabled"`
	Operation string `json:"operation"`
	Cells     []struct {
		Number  int    `json:"number"`
		Status  string `json:"status"`
		Pending bool   `json:"pending"`
		Mine    bool   `json:"mine"`
	} `json:"cells"`
	Batch struct {
		Open      bool  `json:"open"`
		Selected  []int `json:"selected"`
		Eligible  []int `json:"eligible"`
		CanSubmit bool  `json:"canSubmit"`
	} `json:"batch"`
	Toasts []struct {
		Level   string `json:"level"`
		Message string `json:"message"`
	} `json:"toasts"`
}

func (a *testApp) board(t *testing.T, token string) boardView {
	t.Helper()
	status, env := a.do(t, http.MethodGet, "/api/v1/raffles/r1/board", token, "")
	require.Equal(t, http.StatusOK, status)
	var v boardView
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func cellNumbers(v boardView) []int {
	out := []int{}
	for _, c := range v.Cells {
		out = append(out, c.Number)
	}
	return out
}

func TestPublicEndpoints(t *testing.T) {
	app := newTestApp(t)

	status, env := app.do(t, http.MethodGet, "/api/v1/health", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)

	status, _ = app.do(t, http.MethodGet, "/api/v1/ready", "", "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = app.do(t, http.MethodGet, "/api/status", "", "")
	assert.Equal(t, http.StatusOK, status)

	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestProtectedRoutesNeedSession(t *testing.T) {
	app := newTestApp(t)

	status, env := app.do(t, http.MethodGet, "/api/v1/raffles/r1/board", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, env.Success)

	status, _ = app.do(t, http.MethodGet, "/api/v1/activity", "rsf_unknown", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestLoginValidation(t *testing.T) {
	app := newTestApp(t)

	status, env := app.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	status, env = app.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"email":"nobody@example.com","password":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid credentials", env.Error.Message)
}

func TestBuyerBoardAndClicks(t *testing.T) {
	app := newTestApp(t)
	token := app.login(t, "buyer@example.com")

	v := app.board(t, token)
	assert.False(t, v.Owner)
	assert.Equal(t, "purchase", v.Operation)
	assert.Equal(t, []int{1, 2}, cellNumbers(v))

	// Reserve 1
	status, env := app.do(t, http.MethodPost, "/api/v1/raffles/r1/numbers/1/click", token, "")
	require.Equal(t, http.StatusOK, status)
	var click handler.ClickResponse
	require.NoError(t, json.Unmarshal(env.Data, &click))
	assert.Equal(t, "RESERVED", string(click.Cell.Status))
	assert.False(t, click.Cell.Pending)
	assert.True(t, click.Cell.Mine)

	// Remote rejects 2 and the cell rolls back
	app.remote.mu.Lock()
	app.remote.reject[2] = "number already reserved"
	app.remote.mu.Unlock()

	status, env = app.do(t, http.MethodPost, "/api/v1/raffles/r1/numbers/2/click", token, "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "number already reserved", env.Error.Message)

	v = app.board(t, token)
	for _, c := range v.Cells {
		switch c.Number {
		case 1:
			assert.Equal(t, "RESERVED", c.Status)
		case 2:
			assert.Equal(t, "ACTIVE", c.Status)
		}
		assert.False(t, c.Pending)
	}
	require.NotEmpty(t, v.Toasts)
	assert.Equal(t, "number already reserved", v.Toasts[len(v.Toasts)-1].Message)

	status, _ = app.do(t, http.MethodPost, "/api/v1/raffles/r1/numbers/99/click", token, "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = app.do(t, http.MethodPost, "/api/v1/raffles/r1/numbers/abc/click", token, "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = app.do(t, http.MethodPost, "/api/v1/raffles/r1/numbers/0/click", token, "")
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "number must be a positive integer", env.Error.Message)

	status, _ = app.do(t, http.MethodPost, "/api/v1/raffles/r1/batch/toggle/0", token, "")
	assert.Equal(t, http.StatusBadRequest, status)

	// Journal
	app.activity.Wait()
	status, env = app.do(t, http.MethodGet, "/api/v1/activity?page=1&limit=10", token, "")
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, env.Meta)
	assert.Equal(t, int64(2), env.Meta.Total)
	assert.Equal(t, 10, env.Meta.Limit)
}

func TestInactiveRaffleRejectsClicks(t *testing.T) {
	app := newTestApp(t)
	token := app.login(t, "buyer@example.com")
	app.board(t, token)

	app.remote.mu.Lock()
	app.remote.active = false
	app.remote.mu.Unlock()

	status, env := app.do(t, http.MethodPost, "/api/v1/raffles/r1/numbers/1/click", token, "")
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "PRECONDITION_FAILED", env.Error.Code)

	v := app.board(t, token)
	assert.True(t, v.Disabled)
}

func TestBuyerBatchPurchase(t *testing.T) {
	app := newTestApp(t)
	token := app.login(t, "buyer@example.com")
	app.board(t, token)

	for _, n := range []string{"1", "2"} {
		status, _ := app.do(t, http.MethodPost, "/api/v1/raffles/r1/numbers/"+n+"/click", token, "")
		require.Equal(t, http.StatusOK, status)
	}

	status, env := app.do(t, http.MethodPost, "/api/v1/raffles/r1/batch/submit", token, "")
	assert.Equal(t, http.StatusConflict, status, "submitting a closed dialog")
	assert.NotNil(t, env.Error)

	status, _ = app.do(t, http.MethodPost, "/api/v1/raffles/r1/batch/open", token, "")
	require.Equal(t, http.StatusOK, status)

	status, _ = app.do(t, http.MethodPost, "/api/v1/raffles/r1/batch/submit", token, "")
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	// Number 4 is held by someone else
	status, _ = app.do(t, http.MethodPost, "/api/v1/raffles/r1/batch/toggle/4", token, "")
	assert.Equal(t, http.StatusConflict, status)

	status, env = app.do(t, http.MethodPost, "/api/v1/raffles/r1/batch/toggle-all", token, "")
	require.Equal(t, http.StatusOK, status)
	var batch service.BatchView
	require.NoError(t, json.Unmarshal(env.Data, &batch))
	assert.Equal(t, []int{1, 2}, batch.Selected)
	assert.True(t, batch.CanSubmit)

	app.remote.mu.Lock()
	app.remote.reject[2] = "payment declined"
	app.remote.mu.Unlock()

	status, env = app.do(t, http.MethodPost, "/api/v1/raffles/r1/batch/submit", token, "")
	require.Equal(t, http.StatusOK, status)
	var submit handler.SubmitResponse
	require.NoError(t, json.Unmarshal(env.Data, &submit))
	assert.Equal(t, "partial", string(submit.Kind))
	assert.Equal(t, []int{1}, submit.Outcome.Succeeded)
	assert.Equal(t, []int{2}, submit.Outcome.Failed)
	assert.Equal(t, []int{2}, submit.Batch.Selected)
	assert.True(t, submit.Batch.Open)
	assert.NotEmpty(t, env.Message)

	app.remote.mu.Lock()
	assert.Equal(t, []int{1}, app.remote.sold)
	app.remote.mu.Unlock()

	status, env = app.do(t, http.MethodPost, "/api/v1/raffles/r1/batch/close", token, "")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &batch))
	assert.False(t, batch.Open)
	assert.Empty(t, batch.Selected)
}

func TestOwnerSeesEverythingAndSells(t *testing.T) {
	app := newTestApp(t)
	token := app.login(t, "owner@example.com")

	v := app.board(t, token)
	assert.True(t, v.Owner)
	assert.Equal(t, "sell", v.Operation)
	assert.Equal(t, []int{1, 2, 3, 4}, cellNumbers(v))
	assert.Equal(t, []int{4}, v.Batch.Eligible)

	status, _ := app.do(t, http.MethodPost, "/api/v1/raffles/r1/batch/open", token, "")
	require.Equal(t, http.StatusOK, status)
	status, _ = app.do(t, http.MethodPost, "/api/v1/raffles/r1/batch/toggle/4", token, "")
	require.Equal(t, http.StatusOK, status)

	status, env := app.do(t, http.MethodPost, "/api/v1/raffles/r1/batch/submit", token, "")
	require.Equal(t, http.StatusOK, status)
	var submit handler.SubmitResponse
	require.NoError(t, json.Unmarshal(env.Data, &submit))
	assert.Equal(t, "success", string(submit.Kind))
	assert.Equal(t, "sell", string(submit.Outcome.Operation))

	v = app.board(t, token)
	for _, c := range v.Cells {
		if c.Number == 4 {
			assert.Equal(t, "SOLD", c.Status)
		}
	}
}

func TestAdminStatsNeedsKey(t *testing.T) {
	app := newTestApp(t)

	status, _ := app.do(t, http.MethodGet, "/api/v1/admin/stats", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env := app.do(t, http.MethodGet, "/api/v1/admin/stats", "", "", "X-Login-Key", "admin-key")
	require.Equal(t, http.StatusOK, status)
	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, "sqlite", stats["db_type"])
	assert.Contains(t, stats, "storefront")
	assert.Contains(t, stats, "activity")
}

func TestRefreshAndLogout(t *testing.T) {
	app := newTestApp(t)
	httpmock.RegisterResponder(http.MethodPost, remoteURL+"/v1/auth/refresh",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer remote-buyer", req.Header.Get("Authorization"))
			return ok(map[string]string{"token": "remote-buyer-2"})
		})
	app.remote.mu.Lock()
	app.remote.tokenTo["remote-buyer-2"] = "u-buyer"
	app.remote.mu.Unlock()

	token := app.login(t, "buyer@example.com")

	status, _ := app.do(t, http.MethodPost, "/api/v1/auth/refresh", token, "")
	require.Equal(t, http.StatusOK, status)

	status, _ = app.do(t, http.MethodPost, "/api/v1/raffles/r1/numbers/1/click", token, "")
	require.Equal(t, http.StatusOK, status)
	app.remote.mu.Lock()
	assert.Equal(t, "u-buyer", app.remote.holder[1])
	app.remote.mu.Unlock()

	status, _ = app.do(t, http.MethodPost, "/api/v1/auth/logout", token, "")
	require.Equal(t, http.StatusNoContent, status)

	status, _ = app.do(t, http.MethodGet, "/api/v1/raffles/r1/board", token, "")
	assert.Equal(t, http.StatusUnauthorized, status)
}
