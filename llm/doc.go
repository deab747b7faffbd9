// Package llm provides the language model backends used to draft Dockerfiles.
//
// # Backends
//
// Three providers are supported behind the LLM interface:
//
//	m := llm.NewOpenAI(llm.WithOpenAIAPIKey(key))   // gpt-4o-mini
//	m := llm.NewGemini(llm.WithOpenAIAPIKey(key))   // gemini-2.5-flash, OpenAI-compatible endpoint
//	m := llm.NewAnthropic(llm.WithAPIKey(key))      // claude-sonnet-4
//
// or by name, as the configuration layer does:
//
//	m, err := llm.New(llm.ProviderConfig{Name: "gemini", APIKey: key})
//
// # Tool Support
//
// Tool calls and results are carried on Message.ToolCalls and
// Message.ToolResults, never in Content. Each backend converts them to its
// own wire format: content blocks for Anthropic, tool_calls and "tool" role
// messages for Chat Completions. Content is passed through verbatim, so
// prompts may contain any text.
//
// # Rate Limiting
//
// Requests rejected with 429, 529 (Anthropic) or 503 (Chat Completions) are
// retried up to five times, honoring retry-after when present and otherwise
// backing off exponentially from 5s up to 60s.
package llm
