package service

import (
	"context"
	"errors"
	"testing"

	"chatrag-go/internal/rag"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteDocumentQuery(t *testing.T) {
	client := &fakeLLM{response: `{"type": "document_query", "query": "what is the vacation policy?"}`}
	svc := NewRouterService(client)

	decision, err := svc.Route(context.Background(), "what is the vacation policy?")
	require.NoError(t, err)

	assert.Equal(t, RouteDocumentQuery, decision.Type)
	assert.Equal(t, "what is the vacation policy?", decision.Query)
	assert.Empty(t, decision.Action)
}

func TestRouteActionQuery(t *testing.T) {
	client := &fakeLLM{response: `{"type": "action_query", "action": "open_sun_study"}`}
	svc := NewRouterService(client)

	decision, err := svc.Route(context.Background(), "open the sun study please")
	require.NoError(t, err)

	assert.Equal(t, RouteActionQuery, decision.Type)
	assert.Equal(t, "open_sun_study", decision.Action)
}

func TestRouteSensorQuery(t *testing.T) {
	client := &fakeLLM{response: `{"type": "sensor_query", "query": "temperature on floor 3", "sensors": ["temp_f3_a", "temp_f3_b"]}`}
	svc := NewRouterService(client)

	decision, err := svc.Route(context.Background(), "temperature on floor 3")
	require.NoError(t, err)

	assert.Equal(t, RouteSensorQuery, decision.Type)
	assert.Equal(t, []string{"temp_f3_a", "temp_f3_b"}, decision.Sensors)
}

func TestRouteRecoversJSONFromProse(t *testing.T) {
	client := &fakeLLM{response: "Here is the decision:\n{\"type\": \"document_query\"}\nDone."}
	svc := NewRouterService(client)

	decision, err := svc.Route(context.Background(), "original query text")
	require.NoError(t, err)

	// 模型漏掉 query 字段时回填原始查询
	assert.Equal(t, RouteDocumentQuery, decision.Type)
	assert.Equal(t, "original query text", decision.Query)
}

func TestRouteInvalidResponses(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"无 JSON", "this query is about documents"},
		{"未知类型", `{"type": "weather_query"}`},
		{"动作缺失", `{"type": "action_query"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewRouterService(&fakeLLM{response: tt.response})

			_, err := svc.Route(context.Background(), "query")
			require.Error(t, err)

			var routingErr *rag.RoutingError
			assert.True(t, errors.As(err, &routingErr))
		})
	}
}

func TestRouteLLMFailure(t *testing.T) {
	svc := NewRouterService(&fakeLLM{err: errors.New("upstream timeout")})

	_, err := svc.Route(context.Background(), "query")
	require.Error(t, err)

	var routingErr *rag.RoutingError
	assert.True(t, errors.As(err, &routingErr))
}
