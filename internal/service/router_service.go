package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chatrag-go/internal/rag"
	"chatrag-go/pkg/llm"
	"chatrag-go/pkg/log"
)

// 路由类型：文档问答走检索流水线，动作与传感器查询交回客户端执行。
const (
	RouteDocumentQuery = "document_query"
	RouteActionQuery   = "action_query"
	RouteSensorQuery   = "sensor_query"
)

// RouteDecision 是一次查询路由分类的结果。
type RouteDecision struct {
	Type    string   `json:"type"`
	Query   string   `json:"query,omitempty"`
	Action  string   `json:"action,omitempty"`
	Sensors []string `json:"sensors,omitempty"`
}

// RouterService 用 LLM 将用户查询分类为文档问答、动作指令或传感器查询。
// 不属于动作或传感器的查询一律按文档问答处理。
type RouterService interface {
	Route(ctx context.Context, query string) (RouteDecision, error)
}

type routerService struct {
	llmClient llm.Client
}

// NewRouterService 创建查询路由服务。
func NewRouterService(llmClient llm.Client) RouterService {
	return &routerService{llmClient: llmClient}
}

// routingInstruction 描述三类路由及各自的 JSON 响应结构。
const routingInstruction = `You are an intelligent assistant designed to process user queries and determine the appropriate action or data retrieval required. Parse the user's query and identify whether it pertains to sensors, documents, or specific actions, then return a JSON structure indicating the next steps.

1. Sensor query: if the user query mentions any sensor names, return the query and the sensor name(s).
2. Action query: if the user query mentions a specific action, return the action. Recognized actions:
   - "open waypoint": open_waypoint
   - "open markup": open_markup
   - "open sensors": open_sensors
   - "open sun study": open_sun_study
   - "exit": exit
3. Document query: if the query mentions neither a sensor nor a recognized action, return the original user query.

Respond with exactly one of these JSON structures:

- Sensor query: {"type": "sensor_query", "query": "<original query>", "sensors": ["<sensor_name_1>", "<sensor_name_2>"]}
- Action query: {"type": "action_query", "action": "<identified_action>"}
- Document query: {"type": "document_query", "query": "<original query>"}

Return only the JSON structure, without commentary.`

// Route 分类一条用户查询。分类失败（调用失败、JSON 不可恢复、
// 未知类型）以 RoutingError 上抛，不做降级兜底。
func (s *routerService) Route(ctx context.Context, query string) (RouteDecision, error) {
	messages := []llm.Message{
		{Role: "system", Content: routingInstruction},
		{Role: "user", Content: query},
	}

	raw, err := s.llmClient.Complete(ctx, messages)
	if err != nil {
		return RouteDecision{}, &rag.RoutingError{Err: err}
	}

	match := jsonObjectPattern.FindString(raw)
	if match == "" {
		return RouteDecision{}, &rag.RoutingError{Err: errors.New("no JSON object found in routing response")}
	}

	var decision RouteDecision
	if err := json.Unmarshal([]byte(match), &decision); err != nil {
		return RouteDecision{}, &rag.RoutingError{Err: fmt.Errorf("invalid JSON in routing response: %w", err)}
	}

	switch decision.Type {
	case RouteDocumentQuery, RouteSensorQuery:
		if decision.Query == "" {
			decision.Query = query
		}
	case RouteActionQuery:
		if decision.Action == "" {
			return RouteDecision{}, &rag.RoutingError{Err: errors.New("action query without an action")}
		}
	default:
		return RouteDecision{}, &rag.RoutingError{Err: fmt.Errorf("unknown route type %q", decision.Type)}
	}

	log.Infof("[Router] 查询路由完成, type: %s", decision.Type)
	return decision, nil
}
