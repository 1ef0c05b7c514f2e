// Package agent implements the reasoning pipeline: a tool-use loop against
// the Anthropic API with long-term memory recall and web search.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	log "github.com/sirupsen/logrus"

	"github.com/ratatoskr-ai/ratatoskr-go/core"
	"github.com/ratatoskr-ai/ratatoskr-go/memory"
	"github.com/ratatoskr-ai/ratatoskr-go/tools"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "claude-sonnet-4-20250514"

	defaultMaxTurns  = 10
	defaultMaxTokens = 4096

	// maxInvalidCalls bounds how many malformed tool calls (unknown tool,
	// missing thought) the loop tolerates before failing the run.
	maxInvalidCalls = 3
)

// DefaultSystemPrompt is the assistant's base persona.
const DefaultSystemPrompt = `You are Ratatoskr, a helpful personal assistant.
Answer concisely; your replies may be spoken aloud. Use web_search for
current facts, recall_memory when the user refers to earlier conversations,
and save_memory when the user shares a lasting preference or personal
detail.`

// Completer is the model surface the pipeline depends on. *anthropic.Client
// satisfies it through anthropicCompleter; tests script it.
type Completer interface {
	Complete(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

type anthropicCompleter struct {
	client *anthropic.Client
}

func (c anthropicCompleter) Complete(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	return c.client.Messages.New(ctx, params)
}

// NewCompleter wraps an Anthropic client, which reads its API key from the
// environment.
func NewCompleter() Completer {
	client := anthropic.NewClient()
	return anthropicCompleter{client: &client}
}

// Agent runs the tool-use loop. It satisfies dispatch.Pipeline.
type Agent struct {
	completer Completer
	bank      memory.Bank
	search    SearchProvider
	journal   *core.Journal

	model            string
	systemPrompt     string
	maxTurns         int
	maxTokens        int64
	recallK          int
	rememberExchange bool
}

// Option configures the agent.
type Option func(*Agent)

// WithSearch enables the web_search tool.
func WithSearch(s SearchProvider) Option {
	return func(a *Agent) { a.search = s }
}

// WithJournal records user inputs, tool decisions, and tool results.
func WithJournal(j *core.Journal) Option {
	return func(a *Agent) { a.journal = j }
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(a *Agent) {
		if model != "" {
			a.model = model
		}
	}
}

// WithSystemPrompt replaces the base system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) {
		if prompt != "" {
			a.systemPrompt = prompt
		}
	}
}

// WithMaxTurns caps the tool-use loop.
func WithMaxTurns(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxTurns = n
		}
	}
}

// WithRecallK sets how many memories enrich the system prompt per run.
func WithRecallK(k int) Option {
	return func(a *Agent) {
		if k > 0 {
			a.recallK = k
		}
	}
}

// WithExchangeMemory stores each completed user/assistant exchange as a
// memory, so later conversations can recall it.
func WithExchangeMemory() Option {
	return func(a *Agent) { a.rememberExchange = true }
}

// New creates an agent over the given model surface and memory bank.
func New(completer Completer, bank memory.Bank, opts ...Option) *Agent {
	a := &Agent{
		completer:    completer,
		bank:         bank,
		model:        DefaultModel,
		systemPrompt: DefaultSystemPrompt,
		maxTurns:     defaultMaxTurns,
		maxTokens:    defaultMaxTokens,
		recallK:      memory.DefaultRecallK,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run executes one reasoning turn: recall enrichment, then the model loop
// with tool dispatch, until the model answers without tool calls or a limit
// trips.
func (a *Agent) Run(ctx context.Context, input string, history []core.Turn) (string, error) {
	if a.journal != nil {
		a.journal.AddUserInput(input)
	}

	systemPrompt := a.enrichedPrompt(ctx, input)
	conv := historyToMessages(history)
	conv = append(conv, anthropic.NewUserMessage(anthropic.NewTextBlock(input)))

	invalidCalls := 0
	for turn := 0; turn < a.maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		resp, err := a.completer.Complete(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(a.model),
			MaxTokens: a.maxTokens,
			Messages:  conv,
			System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
			Tools:     apiTools(),
		})
		if err != nil {
			return "", fmt.Errorf("model request: %w", err)
		}

		var textResponse string
		var toolResults []anthropic.ContentBlockParamUnion
		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				textResponse += block.Text

			case "tool_use":
				result, failed := a.invokeTool(ctx, block.Name, block.Input)
				if failed == failureInvalid {
					invalidCalls++
				}
				toolResults = append(toolResults, anthropic.NewToolResultBlock(
					block.ID, result, failed != failureNone))
			}
		}

		if invalidCalls >= maxInvalidCalls {
			return "", fmt.Errorf("model produced %d invalid tool calls, giving up", invalidCalls)
		}

		conv = append(conv, resp.ToParam())
		if len(toolResults) == 0 {
			a.recordExchange(ctx, input, textResponse)
			return textResponse, nil
		}
		conv = append(conv, anthropic.NewUserMessage(toolResults...))
	}

	return "", fmt.Errorf("exceeded maximum turns (%d)", a.maxTurns)
}

// enrichedPrompt appends recalled memories to the system prompt. Recall
// failures degrade to the base prompt.
func (a *Agent) enrichedPrompt(ctx context.Context, input string) string {
	memories, err := a.bank.Recall(ctx, input, a.recallK)
	if err != nil {
		log.Warnf("agent: memory recall failed: %v", err)
		return a.systemPrompt
	}
	if len(memories) == 0 {
		return a.systemPrompt
	}

	var b strings.Builder
	b.WriteString(a.systemPrompt)
	b.WriteString("\n\nThings you remember about the user:\n")
	for _, m := range memories {
		b.WriteString("- ")
		b.WriteString(m)
		b.WriteString("\n")
	}
	return b.String()
}

func (a *Agent) recordExchange(ctx context.Context, input, response string) {
	if !a.rememberExchange || strings.TrimSpace(response) == "" {
		return
	}
	exchange := fmt.Sprintf("User said: %s\nAssistant replied: %s", input, response)
	if _, err := a.bank.Remember(ctx, exchange); err != nil {
		log.Warnf("agent: failed to record exchange: %v", err)
	}
}

func historyToMessages(history []core.Turn) []anthropic.MessageParam {
	conv := make([]anthropic.MessageParam, 0, len(history)+2)
	for _, turn := range history {
		switch turn.Role {
		case core.RoleUser:
			conv = append(conv, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Content)))
		case core.RoleAssistant:
			conv = append(conv, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Content)))
		}
	}
	return conv
}

func apiTools() []anthropic.ToolUnionParam {
	defs := tools.AssistantDefinitions()
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		required, _ := d.InputSchema["required"].([]string)
		properties, _ := d.InputSchema["properties"].(map[string]interface{})
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        d.Name,
				Description: anthropic.String(d.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: properties,
					Required:   required,
				},
			},
		})
	}
	return out
}

// failureKind distinguishes malformed tool calls, which count toward the
// invalid-call bound, from tool runtime failures, which the model can react
// to.
type failureKind int

const (
	failureNone failureKind = iota
	failureInvalid
	failureRuntime
)

// invokeTool validates and executes one tool call, returning the result text
// for the model.
func (a *Agent) invokeTool(ctx context.Context, name string, input json.RawMessage) (string, failureKind) {
	var args struct {
		Thought string `json:"thought"`
		Query   string `json:"query"`
		Limit   int    `json:"limit"`
		Text    string `json:"text"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return fmt.Sprintf("invalid tool input JSON: %v", err), failureInvalid
	}

	if a.journal != nil {
		a.journal.AddDecision(name, args.Thought)
	}

	result, kind := a.executeTool(ctx, name, args.Thought, args.Query, args.Limit, args.Text)

	if a.journal != nil {
		var err error
		if kind != failureNone {
			err = fmt.Errorf("%s", result)
		}
		a.journal.AddActionResult(name, result, err)
	}
	return result, kind
}

func (a *Agent) executeTool(ctx context.Context, name, thought, query string, limit int, text string) (string, failureKind) {
	switch name {
	case tools.WebSearch:
		if a.search == nil {
			return "web search is not available", failureRuntime
		}
		answer, err := a.search.Search(ctx, query)
		if err != nil {
			log.Warnf("agent: web search failed: %v", err)
			return err.Error(), failureRuntime
		}
		return answer, failureNone

	case tools.RecallMemory:
		memories, err := a.bank.Recall(ctx, query, limit)
		if err != nil {
			return err.Error(), failureRuntime
		}
		if len(memories) == 0 {
			return "no relevant memories", failureNone
		}
		return strings.Join(memories, "\n"), failureNone

	case tools.SaveMemory:
		if strings.TrimSpace(thought) == "" {
			return `missing "thought": explain why this is worth remembering`, failureInvalid
		}
		if _, err := a.bank.Remember(ctx, text); err != nil {
			return err.Error(), failureRuntime
		}
		return "remembered", failureNone

	default:
		return fmt.Sprintf("unknown tool: %s", name), failureInvalid
	}
}
