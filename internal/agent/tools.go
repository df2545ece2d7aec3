package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/airquery/airquery/internal/airquality"
)

// Tool names exposed to the model.
const (
	ToolAirQuality        = "get_air_quality"
	ToolHistoricalAverage = "get_historical_average"
)

// Param is one string argument of a tool.
type Param struct {
	Name        string
	Description string
	Required    bool
}

// ToolSpec describes a tool to the model.
type ToolSpec struct {
	Name        string
	Description string
	Params      []Param
}

// Handler executes a tool call and returns its JSON-object result.
type Handler func(ctx context.Context, args map[string]any) map[string]any

type tool struct {
	spec    ToolSpec
	handler Handler
}

// Registry maps tool names to handlers.
type Registry struct {
	tools map[string]tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]tool)}
}

// Register adds a tool, replacing any tool with the same name.
func (r *Registry) Register(spec ToolSpec, handler Handler) {
	r.tools[spec.Name] = tool{spec: spec, handler: handler}
}

// Specs returns every registered tool, sorted by name.
func (r *Registry) Specs() []ToolSpec {
	specs := make([]ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		specs = append(specs, t.spec)
	}
	sort.Slice(specs, func(i, j int) bool {
		return specs[i].Name < specs[j].Name
	})
	return specs
}

// Call executes the named tool. Unknown names produce an error result for
// the model rather than a Go error.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) map[string]any {
	t, ok := r.tools[name]
	if !ok {
		return errorResult("unknown tool " + name)
	}
	return t.handler(ctx, args)
}

// Pipeline is the air quality lookup the tools delegate to.
type Pipeline interface {
	Latest(ctx context.Context, city, country string) airquality.LatestResult
	History(ctx context.Context, city, country string) airquality.HistoryResult
}

// AirQualityTools returns a registry with the latest and historical lookups
// for pollutant.
func AirQualityTools(p Pipeline, pollutant airquality.Pollutant) *Registry {
	params := []Param{
		{Name: "city", Description: "City name, for example Paris.", Required: true},
		{Name: "country", Description: "Optional country used to pick between cities with the same name."},
	}

	r := NewRegistry()
	r.Register(ToolSpec{
		Name:        ToolAirQuality,
		Description: fmt.Sprintf("Get the latest %s concentration measured near a city.", pollutant.Name),
		Params:      params,
	}, func(ctx context.Context, args map[string]any) map[string]any {
		city, country := stringArg(args, "city"), stringArg(args, "country")
		return toMap(p.Latest(ctx, city, country))
	})
	r.Register(ToolSpec{
		Name:        ToolHistoricalAverage,
		Description: fmt.Sprintf("Get the yearly average %s concentrations measured near a city.", pollutant.Name),
		Params:      params,
	}, func(ctx context.Context, args map[string]any) map[string]any {
		city, country := stringArg(args, "city"), stringArg(args, "country")
		return toMap(p.History(ctx, city, country))
	})
	return r
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func errorResult(message string) map[string]any {
	return map[string]any{
		"status":  string(airquality.StatusError),
		"message": message,
	}
}

// toMap converts a result envelope into its JSON object form.
func toMap(v any) map[string]any {
	body, err := json.Marshal(v)
	if err != nil {
		return errorResult("Unexpected error: " + err.Error())
	}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return errorResult("Unexpected error: " + err.Error())
	}
	return m
}
