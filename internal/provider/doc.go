// Package provider provides LLM provider abstraction layer for OpenCode.
//
// This package implements a unified interface for different Large Language Model
// providers using the Eino framework. Concrete wire-protocol clients (the actual
// HTTP/SDK calls to Anthropic, OpenAI, or any other vendor) are an external
// collaborator: this package only defines the Provider interface, the Registry
// that selects among configured providers, and the Eino message/tool-call
// conversion helpers that sit between the branching session log's message model
// and the wire format Eino expects.
//
// # Core Components
//
//   - Provider: Core interface that all LLM providers must implement
//   - Registry: Manages and coordinates multiple configured providers
//   - Factory/Factories: Caller-registered constructors, keyed by npm package
//     name, that InitializeProviders uses to build each configured provider
//     entry without this package embedding any one vendor's SDK
//   - CompletionRequest/CompletionStream: Handles streaming chat completions
//   - ConvertFromEinoMessage/ConvertToEinoMessages: Tool-call and content-block
//     conversion between types.Message and Eino's schema.Message
//
// # Registering a provider factory
//
// A binary wiring this package registers one Factory per npm package before
// calling InitializeProviders:
//
//	factories := provider.NewFactories()
//	factories.Register(provider.NpmAnthropic, newAnthropicProvider)
//	factories.Register(provider.NpmOpenAI, newOpenAIProvider)
//
//	registry, err := provider.InitializeProviders(ctx, config, factories)
//
// Provider entries whose npm has no registered factory are skipped with a
// warning rather than failing startup, so a binary can opt into only the
// vendors it actually links.
//
// # Registry Usage
//
// The Registry manages all configured providers and provides unified access:
//
//	registry := provider.NewRegistry(config)
//
//	// Get a specific provider
//	p, err := registry.Get("anthropic")
//
//	// Get a specific model
//	model, err := registry.GetModel("anthropic", "claude-sonnet-4-20250514")
//
//	// Get default model based on configuration
//	model, err := registry.DefaultModel()
//
//	// List all available models across providers
//	models := registry.AllModels()
//
// # Configuration
//
// Configuration supports npm package mapping for TypeScript-compatible config
// files:
//
//	[provider.anthropic]
//	npm = "@ai-sdk/anthropic"
//	model = "claude-sonnet-4-20250514"
//	[provider.anthropic.options]
//	apiKey = "sk-..."
//
// # Streaming Completions
//
// Providers expose streaming chat completions through a unified interface:
//
//	stream, err := p.CreateCompletion(ctx, &provider.CompletionRequest{
//	    Model:     "claude-sonnet-4-20250514",
//	    Messages:  messages,
//	    Tools:     tools,
//	    MaxTokens: 4096,
//	})
//
//	for {
//	    msg, err := stream.Recv()
//	    if err != nil {
//	        break
//	    }
//	    // process message chunk
//	}
//	stream.Close()
//
// # Message and tool conversion
//
//	einoTools := provider.ConvertToEinoTools(tools)
//	einoMessages := provider.ConvertToEinoMessages(logMessages)
//	assistantMsg := provider.ConvertFromEinoMessage(einoChunk)
//
// # Integration with Eino
//
// This package is built on top of the Eino framework (https://github.com/cloudwego/eino),
// which provides standardized LLM interfaces, tool-calling support, streaming,
// and message schema definitions that ConvertToEinoMessages/ConvertFromEinoMessage
// translate to and from.
package provider
