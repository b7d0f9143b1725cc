package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Yahook/mcp-terminal/internal/shared/types"
)

var (
	// ErrUnknownService is returned when a tool id names no registered service.
	ErrUnknownService = errors.New("service not found")
	// ErrUnknownTool is returned when the service exists but lacks the tool.
	ErrUnknownTool = errors.New("tool not found")
	// ErrInvalidToolID is returned for ids without a "<service>." prefix.
	ErrInvalidToolID = errors.New("invalid tool ID format")
	// ErrInvalidParams is wrapped by providers for missing or mistyped
	// arguments.
	ErrInvalidParams = errors.New("invalid params")
)

// Provider interface for service implementations
type Provider interface {
	Definition() types.Service
	Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error)
}

// Recorder observes finished tool calls
type Recorder interface {
	ToolCalled(toolID, status string, seconds float64)
}

// Registry manages service discovery and execution
type Registry struct {
	services sync.Map
	recorder Recorder
}

// NewRegistry creates a new service registry
func NewRegistry() *Registry {
	return &Registry{}
}

// WithRecorder attaches a tool call recorder
func (r *Registry) WithRecorder(rec Recorder) *Registry {
	r.recorder = rec
	return r
}

// Register adds a service provider. Registering an id twice is an error.
func (r *Registry) Register(provider Provider) error {
	def := provider.Definition()
	if def.ID == "" {
		return fmt.Errorf("service ID cannot be empty")
	}

	if _, loaded := r.services.LoadOrStore(def.ID, provider); loaded {
		return fmt.Errorf("service already registered: %s", def.ID)
	}
	return nil
}

// Get retrieves a service by ID
func (r *Registry) Get(serviceID string) (Provider, bool) {
	val, ok := r.services.Load(serviceID)
	if !ok {
		return nil, false
	}
	return val.(Provider), true
}

// List returns all registered services ordered by id
func (r *Registry) List() []types.Service {
	var services []types.Service
	r.services.Range(func(_, value interface{}) bool {
		services = append(services, value.(Provider).Definition())
		return true
	})
	sort.Slice(services, func(i, j int) bool { return services[i].ID < services[j].ID })
	return services
}

// Tools returns every tool of every service, in service then declaration order
func (r *Registry) Tools() []types.Tool {
	var tools []types.Tool
	for _, svc := range r.List() {
		tools = append(tools, svc.Tools...)
	}
	return tools
}

// Tool looks up a single tool by its full id
func (r *Registry) Tool(toolID string) (types.Tool, error) {
	provider, err := r.route(toolID)
	if err != nil {
		return types.Tool{}, err
	}
	for _, tool := range provider.Definition().Tools {
		if tool.ID == toolID {
			return tool, nil
		}
	}
	return types.Tool{}, fmt.Errorf("%w: %s", ErrUnknownTool, toolID)
}

// Execute runs a service tool
func (r *Registry) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	if _, err := r.Tool(toolID); err != nil {
		return types.Failure(err.Error()), err
	}
	provider, _ := r.route(toolID)

	start := time.Now()
	result, err := provider.Execute(ctx, toolID, params, appCtx)
	if r.recorder != nil {
		status := "ok"
		if err != nil || (result != nil && !result.Success) {
			status = "error"
		}
		r.recorder.ToolCalled(toolID, status, time.Since(start).Seconds())
	}
	return result, err
}

// Stats returns registry statistics
func (r *Registry) Stats() map[string]interface{} {
	var total, totalTools int
	categories := make(map[string]int)

	r.services.Range(func(_, value interface{}) bool {
		def := value.(Provider).Definition()
		total++
		totalTools += len(def.Tools)
		categories[string(def.Category)]++
		return true
	})

	return map[string]interface{}{
		"total_services": total,
		"total_tools":    totalTools,
		"categories":     categories,
	}
}

func (r *Registry) route(toolID string) (Provider, error) {
	serviceID, _, ok := strings.Cut(toolID, ".")
	if !ok || serviceID == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToolID, toolID)
	}

	provider, ok := r.Get(serviceID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownService, serviceID)
	}
	return provider, nil
}
