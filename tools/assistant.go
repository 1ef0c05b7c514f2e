// Package tools declares the assistant's tool surface: JSON Schema
// definitions the reasoning pipeline advertises to the model. Execution
// lives in the agent package; this package stays declarative.
package tools

// Definition describes one tool offered to the model.
type Definition struct {
	// Name is the tool name sent to the API.
	Name string

	// Description tells the model when to reach for the tool.
	Description string

	// InputSchema is the JSON Schema for the tool input.
	InputSchema map[string]interface{}

	// RequiresThought marks tools with persistent effects: the model must
	// supply a non-empty thought or the call is rejected.
	RequiresThought bool
}

// Tool names used across the pipeline and journal.
const (
	WebSearch    = "web_search"
	RecallMemory = "recall_memory"
	SaveMemory   = "save_memory"
)

// AssistantDefinitions returns the definitions for the assistant's standard
// tools.
func AssistantDefinitions() []Definition {
	return []Definition{
		{
			Name:        WebSearch,
			Description: "Search the web for current information. Use this for facts you don't know or that may have changed recently.",
			InputSchema: WithThought(ObjectSchema(map[string]interface{}{
				"query": StringProperty("The search query"),
			}, "query"), false),
		},
		{
			Name:        RecallMemory,
			Description: "Recall facts previously remembered about the user. Use this when the user refers to something from an earlier conversation.",
			InputSchema: WithThought(ObjectSchema(map[string]interface{}{
				"query": StringProperty("What to look for in memory"),
				"limit": IntegerProperty("Maximum number of memories to return (default: 2)"),
			}, "query"), false),
		},
		{
			Name:            SaveMemory,
			Description:     "Remember a fact about the user for future conversations. Use this when the user shares a lasting preference or personal detail.",
			RequiresThought: true,
			InputSchema: WithThought(ObjectSchema(map[string]interface{}{
				"text": StringProperty("The fact to remember, phrased as a standalone sentence"),
			}, "text"), true),
		},
	}
}
