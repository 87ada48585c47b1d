package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/calyxweb/calyx/kit/errors"
	"github.com/calyxweb/calyx/routing"
	"github.com/calyxweb/calyx/sqlite"
	"github.com/calyxweb/calyx/sqlrepo"
)

var namesMigrations = fstest.MapFS{
	"0001_create_names.sql": &fstest.MapFile{Data: []byte(`CREATE TABLE names (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL
	)`)},
}

type nameRow struct {
	ID    int64  `db:"id" json:"id"`
	Title string `db:"title" json:"title"`
}

// namesService is the canonical layered service: a CRUD route set over an
// sqlrepo repository, plus one custom route.
func namesService() Service {
	return NewService("names", func(res Resources) ([]routing.RouteSet, error) {
		repo := sqlrepo.New[nameRow](res.Store, res.Log, sqlrepo.Table{
			Name:         "names",
			SearchFields: []string{"title"},
		})

		crud := routing.EntityCRUD("/names", "/admin/names", repo)

		greetings := routing.RouteSetFunc(func(rt *routing.Router) error {
			rt.Get("/hello/{name}", func(r *http.Request) (any, error) {
				return map[string]string{"message": "Hi " + routing.URLParam(r, "name")}, nil
			})
			return nil
		})

		return []routing.RouteSet{crud, greetings}, nil
	})
}

func newTestApp(t *testing.T, opts ...Option) (*App, *httptest.Server) {
	t.Helper()

	store, err := sqlite.NewStore(sqlite.InMemory, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	base := []Option{
		WithLogger(zaptest.NewLogger(t)),
		WithStore(store),
		WithMigrations(namesMigrations),
		WithServices(namesService()),
	}
	a := New(Config{}, append(base, opts...)...)
	require.NoError(t, a.Open(context.Background()))

	ts := httptest.NewServer(a.Handler())
	t.Cleanup(ts.Close)
	return a, ts
}

func request(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func TestAppEndToEnd(t *testing.T) {
	t.Parallel()

	_, ts := newTestApp(t)

	t.Run("health", func(t *testing.T) {
		resp, body := request(t, "GET", ts.URL+"/health", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.JSONEq(t, `{"name": "calyx", "status": "pass"}`, string(body))
	})

	t.Run("custom route", func(t *testing.T) {
		resp, body := request(t, "GET", ts.URL+"/hello/iris", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.JSONEq(t, `{"message": "Hi iris"}`, string(body))
	})

	var created nameRow
	t.Run("create", func(t *testing.T) {
		resp, body := request(t, "POST", ts.URL+"/names/", `{"title": "aster"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.Unmarshal(body, &created))
		require.Equal(t, "aster", created.Title)
		require.NotZero(t, created.ID)
	})

	t.Run("read one", func(t *testing.T) {
		resp, body := request(t, "GET", fmt.Sprintf("%s/names/%d", ts.URL, created.ID), "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got nameRow
		require.NoError(t, json.Unmarshal(body, &got))
		require.Equal(t, created, got)
	})

	t.Run("read many with search", func(t *testing.T) {
		_, body := request(t, "POST", ts.URL+"/admin/names/", `[{"title": "begonia"}, {"title": "crocus"}]`)
		require.NotEmpty(t, body)

		resp, body := request(t, "GET", ts.URL+"/names/?q=aster", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got []nameRow
		require.NoError(t, json.Unmarshal(body, &got))
		require.Len(t, got, 1)
		require.Equal(t, "aster", got[0].Title)
	})

	t.Run("update", func(t *testing.T) {
		resp, body := request(t, "PATCH", fmt.Sprintf("%s/names/%d", ts.URL, created.ID), `{"title": "aster novi-belgii"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got nameRow
		require.NoError(t, json.Unmarshal(body, &got))
		require.Equal(t, "aster novi-belgii", got.Title)
	})

	t.Run("delete", func(t *testing.T) {
		resp, _ := request(t, "DELETE", fmt.Sprintf("%s/names/%d", ts.URL, created.ID), "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = request(t, "GET", fmt.Sprintf("%s/names/%d", ts.URL, created.ID), "")
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		require.Equal(t, errors.ENotFound, resp.Header.Get("X-Calyx-Error-Code"))
	})

	t.Run("metrics", func(t *testing.T) {
		resp, body := request(t, "GET", ts.URL+"/metrics", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, string(body), "http_api_requests_total")
	})
}

func TestOpenRejectsDuplicateServiceNames(t *testing.T) {
	t.Parallel()

	store, err := sqlite.NewStore(sqlite.InMemory, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer store.Close()

	empty := func(name string) Service {
		return NewService(name, func(Resources) ([]routing.RouteSet, error) { return nil, nil })
	}

	a := New(Config{},
		WithLogger(zaptest.NewLogger(t)),
		WithStore(store),
		WithServices(empty("names"), empty("names")),
	)

	err = a.Open(context.Background())
	require.Error(t, err)
	require.Equal(t, errors.EConflict, errors.ErrorCode(err))
}

func TestGlobalServiceRegistry(t *testing.T) {
	resetRegistry()
	t.Cleanup(resetRegistry)

	RegisterService(NewService("registered", func(Resources) ([]routing.RouteSet, error) {
		return []routing.RouteSet{routing.RouteSetFunc(func(rt *routing.Router) error {
			rt.Get("/registered", func(r *http.Request) (any, error) {
				return map[string]bool{"ok": true}, nil
			})
			return nil
		})}, nil
	}))

	store, err := sqlite.NewStore(sqlite.InMemory, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer store.Close()

	a := New(Config{}, WithLogger(zaptest.NewLogger(t)), WithStore(store))
	require.NoError(t, a.Open(context.Background()))

	ts := httptest.NewServer(a.Handler())
	defer ts.Close()

	resp, body := request(t, "GET", ts.URL+"/registered", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"ok": true}`, string(body))
}

func TestRunServesAndShutsDown(t *testing.T) {
	t.Parallel()

	store, err := sqlite.NewStore(sqlite.InMemory, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer store.Close()

	a := New(Config{HTTPAddr: "127.0.0.1:0", ShutdownTimeout: time.Second},
		WithLogger(zaptest.NewLogger(t)),
		WithStore(store),
	)
	require.NoError(t, a.Open(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// let the listener start, then ask for shutdown
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not shut down in time")
	}
}

func TestRunClosesStoreOnListenError(t *testing.T) {
	t.Parallel()

	a := New(Config{HTTPAddr: "not-a-listen-address", DBPath: t.TempDir() + "/" + sqlite.DefaultFilename},
		WithLogger(zaptest.NewLogger(t)),
	)
	require.NoError(t, a.Open(context.Background()))

	err := a.Run(context.Background())
	require.Error(t, err)

	// the app owned the store, so the failed run must have released it
	require.Error(t, a.Store().DB.Ping())
}

func TestRunBeforeOpen(t *testing.T) {
	t.Parallel()

	a := New(Config{}, WithLogger(zaptest.NewLogger(t)))
	err := a.Run(context.Background())
	require.Error(t, err)
	require.Equal(t, errors.EInvalid, errors.ErrorCode(err))
}
