// Package llm provides the language-model request layer for agents.
//
// It covers prompt assembly (system prompt, identity block, compressed
// history, ephemeral cache markers), the chat-completion transport, parsing
// of tool invocations from assistant output, a typed failure taxonomy, a
// process-wide request queue for provider back-pressure, and per-agent usage
// accounting.
//
// # Messages
//
// A Message carries a role and a content sequence of text and image chunks.
// Plain-text messages are the common case; image chunks appear when tools
// return screenshots and the configured model supports vision.
//
// # Failure taxonomy
//
// All transport failures surface as *RequestError carrying a FailureKind
// (rate limited, auth invalid, model not found, context length exceeded,
// content policy, service unavailable, timeout, bad request, connection,
// other) plus the original detail string. Callers branch on Kind explicitly
// rather than matching error text.
//
// # Request queue
//
// Outbound completion calls traverse a single process-wide RequestQueue.
// Admission is first-come-first-served; callers block until a slot is free.
package llm
