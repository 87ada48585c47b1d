// Package routing exposes calyx services over HTTP. A service contributes
// route sets; the router glues them onto the shared chi mux and takes care
// of encoding results and errors, so handlers deal in values rather than
// response writers.
package routing

import (
	"net/http"

	"github.com/go-chi/chi"
	"go.uber.org/zap"

	kithttp "github.com/calyxweb/calyx/kit/transport/http"
)

// RouteSet is a collection of related routes that expose a service to its
// clients. Routes is called once, at mount time; it returns an error when
// the set is misconfigured.
type RouteSet interface {
	Routes(r *Router) error
}

// RouteSetFunc adapts a function to the RouteSet interface.
type RouteSetFunc func(r *Router) error

func (f RouteSetFunc) Routes(r *Router) error { return f(r) }

// HandlerFunc is the handler signature of calyx routes: return a value to
// respond 200 with its JSON encoding, or an error to respond with the
// mapped error payload.
type HandlerFunc func(r *http.Request) (any, error)

// Router registers calyx handlers on a chi mux.
type Router struct {
	mux chi.Router
	api *kithttp.API
}

// NewRouter returns an empty Router logging through log.
func NewRouter(log *zap.Logger) *Router {
	return &Router{
		mux: chi.NewRouter(),
		api: kithttp.NewAPI(kithttp.WithLog(log)),
	}
}

// Handler returns the underlying http handler for mounting into a server.
func (rt *Router) Handler() http.Handler {
	return rt.mux
}

// Get registers h for GET requests on pattern.
func (rt *Router) Get(pattern string, h HandlerFunc) { rt.method(http.MethodGet, pattern, h) }

// Post registers h for POST requests on pattern.
func (rt *Router) Post(pattern string, h HandlerFunc) { rt.method(http.MethodPost, pattern, h) }

// Put registers h for PUT requests on pattern.
func (rt *Router) Put(pattern string, h HandlerFunc) { rt.method(http.MethodPut, pattern, h) }

// Patch registers h for PATCH requests on pattern.
func (rt *Router) Patch(pattern string, h HandlerFunc) { rt.method(http.MethodPatch, pattern, h) }

// Delete registers h for DELETE requests on pattern.
func (rt *Router) Delete(pattern string, h HandlerFunc) { rt.method(http.MethodDelete, pattern, h) }

// Options registers h for OPTIONS requests on pattern.
func (rt *Router) Options(pattern string, h HandlerFunc) { rt.method(http.MethodOptions, pattern, h) }

// Head registers h for HEAD requests on pattern.
func (rt *Router) Head(pattern string, h HandlerFunc) { rt.method(http.MethodHead, pattern, h) }

func (rt *Router) method(method, pattern string, h HandlerFunc) {
	rt.mux.MethodFunc(method, pattern, func(w http.ResponseWriter, r *http.Request) {
		v, err := h(r)
		if err != nil {
			rt.api.Err(w, r, err)
			return
		}
		rt.api.Respond(w, r, http.StatusOK, v)
	})
}

// URLParam returns the named URL parameter of the matched route.
func URLParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

// Mount builds a router from the given route sets.
func Mount(log *zap.Logger, sets ...RouteSet) (*Router, error) {
	rt := NewRouter(log)
	for _, s := range sets {
		if err := s.Routes(rt); err != nil {
			return nil, err
		}
	}
	return rt, nil
}
