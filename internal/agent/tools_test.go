package agent_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/airquery/airquery/internal/agent"
	"github.com/airquery/airquery/internal/airquality"
)

func TestRegistry_SpecsSorted(t *testing.T) {
	r := agent.NewRegistry()
	noop := func(context.Context, map[string]any) map[string]any { return nil }
	r.Register(agent.ToolSpec{Name: "zeta"}, noop)
	r.Register(agent.ToolSpec{Name: "alpha"}, noop)

	specs := r.Specs()
	assert.Equal(t, "alpha", specs[0].Name)
	assert.Equal(t, "zeta", specs[1].Name)
}

func TestRegistry_CallIgnoresNonStringArgs(t *testing.T) {
	pipeline := &fakePipeline{}
	r := agent.AirQualityTools(pipeline, airquality.PM25)

	result := r.Call(context.Background(), agent.ToolAirQuality, map[string]any{"city": 42, "country": nil})

	assert.Equal(t, "ok", result["status"])
	assert.Equal(t, []string{"|"}, pipeline.latestCities)
}
