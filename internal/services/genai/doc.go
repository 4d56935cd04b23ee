// Package genai talks to text-generation services. A registry maps model
// identifiers to clients (a locally hosted ollama server or a remote chat
// completion API), and a gateway wraps every call with fixed-delay retries
// and, for remote models, rate-limit pacing.
package genai
