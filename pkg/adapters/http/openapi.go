package http

import (
	"net/http"

	"github.com/aretw0/parley"
	"github.com/getkin/kin-openapi/openapi3"
)

// OpenAPI describes the HTTP surface.
func OpenAPI() *openapi3.T {
	str := openapi3.NewStringSchema
	anyObject := openapi3.NewObjectSchema

	envelope := openapi3.NewObjectSchema().
		WithProperty("type", str()).
		WithProperty("conversation_id", str()).
		WithProperty("content", str()).
		WithProperty("meta", anyObject()).
		WithProperty("steps", openapi3.NewIntegerSchema()).
		WithProperty("interrupted", openapi3.NewBoolSchema())
	errorBody := openapi3.NewObjectSchema().WithProperty("error", str())
	toolSpec := openapi3.NewObjectSchema().
		WithProperty("name", str()).
		WithProperty("description", str()).
		WithProperty("parameters", anyObject())
	conversation := openapi3.NewObjectSchema().
		WithProperty("id", str()).
		WithProperty("history", openapi3.NewArraySchema().WithItems(anyObject())).
		WithProperty("thoughts", openapi3.NewArraySchema().WithItems(str())).
		WithProperty("tool_calls", openapi3.NewArraySchema().WithItems(anyObject())).
		WithProperty("current_tasks", openapi3.NewArraySchema().WithItems(anyObject())).
		WithProperty("preferences", anyObject()).
		WithProperty("errors", openapi3.NewArraySchema().WithItems(anyObject())).
		WithProperty("created_at", openapi3.NewDateTimeSchema()).
		WithProperty("updated_at", openapi3.NewDateTimeSchema())

	idParam := &openapi3.ParameterRef{Value: openapi3.NewPathParameter("id").WithSchema(str())}

	op := func(id, summary string, status int, body *openapi3.Schema) *openapi3.Operation {
		o := openapi3.NewOperation()
		o.OperationID = id
		o.Summary = summary
		resp := openapi3.NewResponse().WithDescription(http.StatusText(status))
		if body != nil {
			resp = resp.WithJSONSchema(body)
		}
		o.AddResponse(status, resp)
		return o
	}
	withErrors := func(o *openapi3.Operation, statuses ...int) *openapi3.Operation {
		for _, st := range statuses {
			o.AddResponse(st, openapi3.NewResponse().WithDescription(http.StatusText(st)).WithJSONSchema(errorBody))
		}
		return o
	}
	withBody := func(o *openapi3.Operation, body *openapi3.Schema) *openapi3.Operation {
		o.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchema(body)}
		return o
	}
	withID := func(o *openapi3.Operation) *openapi3.Operation {
		o.Parameters = append(o.Parameters, idParam)
		return o
	}

	messageBody := openapi3.NewObjectSchema().WithProperty("content", str())
	messageBody.Required = []string{"content"}
	signalBody := openapi3.NewObjectSchema().
		WithProperty("type", str()).
		WithProperty("data", anyObject()).
		WithProperty("meta", anyObject())
	signalBody.Required = []string{"type"}

	events := openapi3.NewOperation()
	events.OperationID = "subscribeEvents"
	events.Summary = "Stream processed results as server-sent events"
	events.AddParameter(openapi3.NewQueryParameter("types").WithSchema(str()))
	events.AddResponse(http.StatusOK, openapi3.NewResponse().
		WithDescription("Event stream").
		WithContent(openapi3.Content{"text/event-stream": openapi3.NewMediaType().WithSchema(str())}))

	paths := openapi3.NewPaths(
		openapi3.WithPath("/health", &openapi3.PathItem{
			Get: op("getHealth", "Liveness probe", http.StatusOK, anyObject()),
		}),
		openapi3.WithPath("/info", &openapi3.PathItem{
			Get: op("getInfo", "Server name and version", http.StatusOK, anyObject()),
		}),
		openapi3.WithPath("/tools", &openapi3.PathItem{
			Get: op("listTools", "Registered tools", http.StatusOK, openapi3.NewArraySchema().WithItems(toolSpec)),
		}),
		openapi3.WithPath("/conversations", &openapi3.PathItem{
			Get: withErrors(op("listConversations", "Stored conversation ids", http.StatusOK,
				openapi3.NewObjectSchema().WithProperty("conversations", openapi3.NewArraySchema().WithItems(str()))),
				http.StatusInternalServerError),
			Post: withErrors(op("createConversation", "Create or fetch a conversation", http.StatusCreated, conversation),
				http.StatusBadRequest, http.StatusInternalServerError),
		}),
		openapi3.WithPath("/conversations/{id}", &openapi3.PathItem{
			Get: withID(withErrors(op("getConversation", "Load a conversation", http.StatusOK, conversation),
				http.StatusNotFound, http.StatusInternalServerError)),
			Delete: withID(withErrors(op("deleteConversation", "Delete a conversation", http.StatusNoContent, nil),
				http.StatusInternalServerError)),
		}),
		openapi3.WithPath("/conversations/{id}/messages", &openapi3.PathItem{
			Post: withID(withBody(withErrors(op("postMessage", "Send a user message", http.StatusOK, envelope),
				http.StatusBadRequest, http.StatusInternalServerError), messageBody)),
		}),
		openapi3.WithPath("/conversations/{id}/signals", &openapi3.PathItem{
			Post: withID(withBody(withErrors(op("postSignal", "Inject a raw signal", http.StatusOK, envelope),
				http.StatusBadRequest, http.StatusInternalServerError), signalBody)),
		}),
		openapi3.WithPath("/conversations/{id}/events", &openapi3.PathItem{
			Get: withID(events),
		}),
	)

	return &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "Parley API",
			Description: "Signal-driven conversation engine",
			Version:     parley.Version,
		},
		Paths: paths,
	}
}
