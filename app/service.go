package app

import (
	"sync"

	"go.uber.org/zap"

	"github.com/calyxweb/calyx/routing"
	"github.com/calyxweb/calyx/sqlite"
)

// Resources is what the app hands each service at mount time. Services
// build their repositories against the shared store and log through the
// shared logger.
type Resources struct {
	Log   *zap.Logger
	Store *sqlite.Store
}

// Service is one vertical slice of an application: a name plus the route
// sets it exposes. RouteSets is called once, during App.Open.
type Service interface {
	Name() string
	RouteSets(res Resources) ([]routing.RouteSet, error)
}

// NewService builds a Service from a name and a route-set constructor,
// for services that do not need their own type.
func NewService(name string, fn func(res Resources) ([]routing.RouteSet, error)) Service {
	return funcService{name: name, fn: fn}
}

type funcService struct {
	name string
	fn   func(res Resources) ([]routing.RouteSet, error)
}

func (s funcService) Name() string { return s.name }

func (s funcService) RouteSets(res Resources) ([]routing.RouteSet, error) { return s.fn(res) }

var (
	registryMu sync.Mutex
	registry   []Service
)

// RegisterService adds svc to the global registry picked up by every App
// built afterwards. It is typically called from a service package's init
// function, so importing the package is what plugs it in:
//
//	import _ "example.com/myapp/services/names"
func RegisterService(svc Service) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = append(registry, svc)
}

func registered() []Service {
	registryMu.Lock()
	defer registryMu.Unlock()
	out := make([]Service, len(registry))
	copy(out, registry)
	return out
}

// resetRegistry exists for tests.
func resetRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = nil
}
