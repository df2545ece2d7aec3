package agent_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airquery/airquery/internal/agent"
	"github.com/airquery/airquery/internal/airquality"
)

// scriptedChat replays a fixed sequence of replies.
type scriptedChat struct {
	replies   []*agent.Reply
	err       error
	prompts   []string
	responses [][]agent.FunctionResponse
}

func (c *scriptedChat) next() (*agent.Reply, error) {
	if c.err != nil {
		return nil, c.err
	}
	if len(c.replies) == 0 {
		return &agent.Reply{Text: "done"}, nil
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r, nil
}

func (c *scriptedChat) Send(_ context.Context, prompt string) (*agent.Reply, error) {
	c.prompts = append(c.prompts, prompt)
	return c.next()
}

func (c *scriptedChat) SendFunctionResponses(_ context.Context, responses []agent.FunctionResponse) (*agent.Reply, error) {
	c.responses = append(c.responses, responses)
	return c.next()
}

type fakeFactory struct {
	chats []*scriptedChat
	tools [][]agent.ToolSpec
	err   error
}

func (f *fakeFactory) NewChat(_ context.Context, tools []agent.ToolSpec) (agent.Chat, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tools = append(f.tools, tools)
	chat := f.chats[0]
	f.chats = f.chats[1:]
	return chat, nil
}

type fakePipeline struct {
	latestCities  []string
	historyCities []string
}

func (p *fakePipeline) Latest(_ context.Context, city, country string) airquality.LatestResult {
	p.latestCities = append(p.latestCities, city+"|"+country)
	return airquality.LatestResult{
		Status: airquality.StatusOK,
		LatestData: &airquality.LatestData{
			City:      city,
			Parameter: "PM2.5",
			Value:     7.5,
			Unit:      airquality.DefaultUnit,
		},
	}
}

func (p *fakePipeline) History(_ context.Context, city, _ string) airquality.HistoryResult {
	p.historyCities = append(p.historyCities, city)
	return airquality.HistoryResult{Status: airquality.StatusError, Kind: airquality.KindNotFound, Message: "City '" + city + "' not found."}
}

func newAgent(factory agent.ChatFactory, pipeline agent.Pipeline) *agent.Agent {
	return agent.New(agent.Config{
		Factory: factory,
		Tools:   agent.AirQualityTools(pipeline, airquality.PM25),
		Logger:  zerolog.Nop(),
	})
}

func TestAgent_Ask_TextOnly(t *testing.T) {
	chat := &scriptedChat{replies: []*agent.Reply{{Text: "Hello there."}}}
	factory := &fakeFactory{chats: []*scriptedChat{chat}}

	answer, err := newAgent(factory, &fakePipeline{}).Ask(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello there.", answer)
	assert.Equal(t, []string{"hi"}, chat.prompts)
	assert.Empty(t, chat.responses)

	require.Len(t, factory.tools, 1)
	require.Len(t, factory.tools[0], 2)
	assert.Equal(t, agent.ToolAirQuality, factory.tools[0][0].Name)
}

func TestAgent_Ask_ExecutesToolCalls(t *testing.T) {
	chat := &scriptedChat{replies: []*agent.Reply{
		{Calls: []agent.FunctionCall{
			{ID: "1", Name: agent.ToolAirQuality, Args: map[string]any{"city": "Paris", "country": "France"}},
			{ID: "2", Name: agent.ToolHistoricalAverage, Args: map[string]any{"city": "Atlantis"}},
		}},
		{Text: "Paris has 7.5 µg/m³ of PM2.5."},
	}}
	pipeline := &fakePipeline{}

	answer, err := newAgent(&fakeFactory{chats: []*scriptedChat{chat}}, pipeline).Ask(context.Background(), "How is the air in Paris?")
	require.NoError(t, err)
	assert.Equal(t, "Paris has 7.5 µg/m³ of PM2.5.", answer)

	assert.Equal(t, []string{"Paris|France"}, pipeline.latestCities)
	assert.Equal(t, []string{"Atlantis"}, pipeline.historyCities)

	require.Len(t, chat.responses, 1)
	responses := chat.responses[0]
	require.Len(t, responses, 2)

	assert.Equal(t, "1", responses[0].ID)
	assert.Equal(t, agent.ToolAirQuality, responses[0].Name)
	assert.Equal(t, "ok", responses[0].Response["status"])
	assert.Equal(t, "Paris", responses[0].Response["city"])
	assert.InDelta(t, 7.5, responses[0].Response["value"], 1e-9)

	assert.Equal(t, "error", responses[1].Response["status"])
	assert.Equal(t, "City 'Atlantis' not found.", responses[1].Response["message"])
}

func TestAgent_Ask_UnknownTool(t *testing.T) {
	chat := &scriptedChat{replies: []*agent.Reply{
		{Calls: []agent.FunctionCall{{Name: "get_weather"}}},
		{Text: "I cannot check the weather."},
	}}

	answer, err := newAgent(&fakeFactory{chats: []*scriptedChat{chat}}, &fakePipeline{}).Ask(context.Background(), "weather?")
	require.NoError(t, err)
	assert.Equal(t, "I cannot check the weather.", answer)

	require.Len(t, chat.responses, 1)
	assert.Equal(t, map[string]any{"status": "error", "message": "unknown tool get_weather"}, chat.responses[0][0].Response)
}

func TestAgent_Ask_TooManyToolRounds(t *testing.T) {
	loop := &agent.Reply{Calls: []agent.FunctionCall{{Name: agent.ToolAirQuality, Args: map[string]any{"city": "Paris"}}}}
	replies := make([]*agent.Reply, 0, 10)
	for i := 0; i < 10; i++ {
		replies = append(replies, loop)
	}
	chat := &scriptedChat{replies: replies}
	pipeline := &fakePipeline{}

	_, err := newAgent(&fakeFactory{chats: []*scriptedChat{chat}}, pipeline).Ask(context.Background(), "loop")
	assert.ErrorIs(t, err, agent.ErrTooManyToolRounds)
	assert.Len(t, pipeline.latestCities, agent.DefaultMaxToolRounds)
}

func TestAgent_Ask_ModelErrors(t *testing.T) {
	t.Run("open chat", func(t *testing.T) {
		_, err := newAgent(&fakeFactory{err: errors.New("quota")}, &fakePipeline{}).Ask(context.Background(), "hi")
		assert.ErrorIs(t, err, agent.ErrModel)
	})

	t.Run("send", func(t *testing.T) {
		chat := &scriptedChat{err: errors.New("503 from upstream")}
		_, err := newAgent(&fakeFactory{chats: []*scriptedChat{chat}}, &fakePipeline{}).Ask(context.Background(), "hi")
		assert.ErrorIs(t, err, agent.ErrModel)
		assert.Contains(t, err.Error(), "503 from upstream")
	})
}

func TestAgent_Ask_EmptyPrompt(t *testing.T) {
	factory := &fakeFactory{}
	_, err := newAgent(factory, &fakePipeline{}).Ask(context.Background(), "  ")
	assert.ErrorIs(t, err, agent.ErrEmptyPrompt)
	assert.Empty(t, factory.tools)
}

func TestAgent_Ask_FreshSessionPerPrompt(t *testing.T) {
	first := &scriptedChat{replies: []*agent.Reply{{Text: "one"}}}
	second := &scriptedChat{replies: []*agent.Reply{{Text: "two"}}}
	factory := &fakeFactory{chats: []*scriptedChat{first, second}}
	a := newAgent(factory, &fakePipeline{})

	answer, err := a.Ask(context.Background(), "first")
	require.NoError(t, err)
	assert.Equal(t, "one", answer)

	answer, err = a.Ask(context.Background(), "second")
	require.NoError(t, err)
	assert.Equal(t, "two", answer)

	assert.Equal(t, []string{"first"}, first.prompts)
	assert.Equal(t, []string{"second"}, second.prompts)
}
