package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"kakeibo/internal/app"
	"kakeibo/internal/auth"
	"kakeibo/internal/kv"
	"kakeibo/internal/kv/memory"
	applog "kakeibo/internal/log"
)

var fixedNow = time.Date(2024, time.May, 20, 9, 0, 0, 0, time.UTC)

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Level: slog.LevelError, Output: io.Discard})
}

func newTestServer(t *testing.T, store kv.Store, cfg Config) (*Server, *app.App) {
	t.Helper()
	a := app.New(store, app.WithAuthOptions(auth.WithBcryptCost(bcrypt.MinCost)))
	if cfg.RateLimitPerMinute == 0 {
		cfg.RateLimitPerMinute = 1000
	}
	cfg.Logger = quietLogger()
	cfg.Now = func() time.Time { return fixedNow }
	srv, err := NewServer(cfg, a)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, a
}

func do(srv *Server, method, path string, form url.Values) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func register(t *testing.T, srv *Server, name, email string) {
	t.Helper()
	rr := do(srv, http.MethodPost, "/register", url.Values{
		"name": {name}, "email": {email}, "password": {"secret1"}, "confirm_password": {"secret1"},
	})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/", rr.Header().Get("Location"))
}

func TestIndex_ShowsLoginWithoutSession(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), Config{})

	rr := do(srv, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	require.Contains(t, body, "ログイン")
	require.Contains(t, body, "新規登録")
	require.NotContains(t, body, "取引履歴")

	require.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	require.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	require.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestRegisterAddAndSummary(t *testing.T) {
	srv, a := newTestServer(t, memory.New(), Config{})
	register(t, srv, "Taro", "a@x.com")

	rr := do(srv, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "Taro")
	require.Contains(t, rr.Body.String(), `value="2024-05"`)
	require.Contains(t, rr.Body.String(), "データがありません")

	for _, form := range []url.Values{
		{"date": {"2024-05-10"}, "description": {"Salary"}, "type": {"income"}, "amount": {"3000"}, "month": {"2024-05"}},
		{"date": {"2024-05-12"}, "description": {"Food"}, "type": {"expense"}, "amount": {"1,000"}, "month": {"2024-05"}},
	} {
		rr := do(srv, http.MethodPost, "/transactions", form)
		require.Equal(t, http.StatusSeeOther, rr.Code)
		require.Equal(t, "/?month=2024-05", rr.Header().Get("Location"))
	}

	rr = do(srv, http.MethodGet, "/?month=2024-05", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	require.Contains(t, body, `<p id="income-total">3,000円</p>`)
	require.Contains(t, body, `<p id="expense-total">1,000円</p>`)
	require.Contains(t, body, `<p id="balance-total">2,000円</p>`)
	require.Contains(t, body, `<p id="total-balance">2,000円</p>`)
	require.Contains(t, body, "2024/05/10")
	require.Contains(t, body, "売上")
	require.Contains(t, body, "支出")

	rr = do(srv, http.MethodGet, "/?month=2024-06", nil)
	body = rr.Body.String()
	require.Contains(t, body, "データがありません")
	require.Contains(t, body, `<p id="income-total">0円</p>`)
	require.Contains(t, body, `<p id="total-balance">2,000円</p>`)

	sess, err := a.Session(context.Background())
	require.NoError(t, err)
	all, err := a.Book.For(sess.ID).All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestDeleteTransaction(t *testing.T) {
	ctx := context.Background()
	srv, a := newTestServer(t, memory.New(), Config{})
	register(t, srv, "Taro", "a@x.com")

	rr := do(srv, http.MethodPost, "/transactions", url.Values{
		"date": {"2024-05-10"}, "description": {"Salary"}, "type": {"income"}, "amount": {"3000"},
	})
	require.Equal(t, http.StatusSeeOther, rr.Code)

	l, err := a.Ledger(ctx)
	require.NoError(t, err)
	all, err := l.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	for i := 0; i < 2; i++ {
		rr = do(srv, http.MethodPost, "/transactions/delete", url.Values{"id": {all[0].ID}, "month": {"2024-05"}})
		require.Equal(t, http.StatusSeeOther, rr.Code)
		require.Equal(t, "/?month=2024-05", rr.Header().Get("Location"))
	}

	all, err = l.All(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestAddTransaction_Validation(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), Config{})
	register(t, srv, "Taro", "a@x.com")

	rr := do(srv, http.MethodPost, "/transactions", url.Values{
		"date": {"2024-05-10"}, "description": {""}, "type": {"income"}, "amount": {"3000"}, "month": {"2024-05"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	body := rr.Body.String()
	require.Contains(t, body, "すべての項目を入力してください")
	// The rest of the form is echoed back.
	require.Contains(t, body, `value="3000"`)
}

func TestTransactions_RequireSession(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), Config{})

	rr := do(srv, http.MethodPost, "/transactions", url.Values{
		"date": {"2024-05-10"}, "description": {"x"}, "type": {"income"}, "amount": {"1"},
	})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/", rr.Header().Get("Location"))

	rr = do(srv, http.MethodPost, "/transactions/delete", url.Values{"id": {"x"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/", rr.Header().Get("Location"))
}

func TestRegister_Errors(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), Config{})

	rr := do(srv, http.MethodPost, "/register", url.Values{
		"name": {"Taro"}, "email": {"a@x.com"}, "password": {"secret1"}, "confirm_password": {"secret2"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Contains(t, rr.Body.String(), "パスワードが一致しません")
	require.Contains(t, rr.Body.String(), `value="a@x.com"`)

	rr = do(srv, http.MethodPost, "/register", url.Values{"name": {"Taro"}})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Contains(t, rr.Body.String(), "全ての項目を入力してください")

	register(t, srv, "Taro", "a@x.com")
	rr = do(srv, http.MethodPost, "/register", url.Values{
		"name": {"Other"}, "email": {"a@x.com"}, "password": {"secret9"}, "confirm_password": {"secret9"},
	})
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "このメールアドレスは既に登録されています")
}

func TestRegister_LongPasswordSignsIn(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), Config{})
	long := strings.Repeat("長", 30)

	rr := do(srv, http.MethodPost, "/register", url.Values{
		"name": {"Taro"}, "email": {"a@x.com"}, "password": {long}, "confirm_password": {long},
	})
	require.Equal(t, http.StatusSeeOther, rr.Code)

	require.Equal(t, http.StatusSeeOther, do(srv, http.MethodPost, "/logout", nil).Code)
	rr = do(srv, http.MethodPost, "/login", url.Values{"email": {"a@x.com"}, "password": {long}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/", rr.Header().Get("Location"))
}

func TestLoginLogout(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), Config{})
	register(t, srv, "Taro", "a@x.com")

	rr := do(srv, http.MethodPost, "/logout", url.Values{})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Contains(t, do(srv, http.MethodGet, "/", nil).Body.String(), "新規登録")

	for _, pw := range []string{"wrong!!", ""} {
		form := url.Values{"email": {"nobody@x.com"}, "password": {pw}}
		if pw != "" {
			form.Set("email", "a@x.com")
		}
		rr = do(srv, http.MethodPost, "/login", form)
		if pw == "" {
			require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
			require.Contains(t, rr.Body.String(), "メールアドレスとパスワードを入力してください")
		} else {
			require.Equal(t, http.StatusUnauthorized, rr.Code)
			require.Contains(t, rr.Body.String(), "メールアドレスまたはパスワードが正しくありません")
		}
	}

	rr = do(srv, http.MethodPost, "/login", url.Values{"email": {"a@x.com"}, "password": {"secret1"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Contains(t, do(srv, http.MethodGet, "/", nil).Body.String(), "Taro")
}

func TestMethodAndPathChecks(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), Config{})

	for _, path := range []string{"/login", "/register", "/logout", "/transactions", "/transactions/delete"} {
		rr := do(srv, http.MethodGet, path, nil)
		require.Equal(t, http.StatusMethodNotAllowed, rr.Code, path)
		require.Equal(t, "POST", rr.Header().Get("Allow"), path)
	}

	require.Equal(t, http.StatusNotFound, do(srv, http.MethodGet, "/nope", nil).Code)
	require.Equal(t, http.StatusMethodNotAllowed, do(srv, http.MethodPost, "/", url.Values{}).Code)
}

func TestHealthReadyMetrics(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), Config{})

	rr := do(srv, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"status":"ok"`)

	rr = do(srv, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"status":"ready"`)

	rr = do(srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "http_requests_total")
	require.Contains(t, rr.Body.String(), "ledger_cache_entries")

	failing, _ := newTestServer(t, memory.New(), Config{
		Ready: func(context.Context) error { return errors.New("database is locked") },
	})
	rr = do(failing, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Contains(t, rr.Body.String(), "database is locked")
}

func TestStaticAssets(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), Config{})

	rr := do(srv, http.MethodGet, "/static/style.css", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))
}

func TestRateLimitAppliesToPOST(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(), Config{RateLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		rr := do(srv, http.MethodPost, "/login", url.Values{"email": {"a@x.com"}, "password": {"bad"}})
		require.NotEqual(t, http.StatusTooManyRequests, rr.Code)
	}
	rr := do(srv, http.MethodPost, "/login", url.Values{"email": {"a@x.com"}, "password": {"bad"}})
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.NotEmpty(t, rr.Header().Get("Retry-After"))

	// GETs are not throttled.
	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/", nil).Code)
	}
}

type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, f.err }
func (f failingStore) Set(context.Context, string, []byte) error         { return f.err }
func (f failingStore) Remove(context.Context, string) error              { return f.err }

func TestStoreFailureIsInternalError(t *testing.T) {
	srv, _ := newTestServer(t, failingStore{err: errors.New("quota exceeded")}, Config{})

	rr := do(srv, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "quota exceeded")

	rr = do(srv, http.MethodPost, "/login", url.Values{"email": {"a@x.com"}, "password": {"secret1"}})
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}
