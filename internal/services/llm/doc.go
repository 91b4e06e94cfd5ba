// Package llm provides an OpenRouter chat client for descriptive analysis.
//
// The client turns a measured feature document into a short written
// description of the track. It is consumed only by the command line tools;
// the conversion pipeline never calls the model.
//
// # Request Shape
//
// The client sends a system prompt and the encoded feature document with
// JSON response mode and temperature 0, and decodes the single JSON object
// the model returns. Code fences and surrounding prose in the response are
// tolerated.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors and network timeouts with
// exponential backoff (base 1s, max 10s, up to 4 attempts by default),
// honouring Retry-After when present. Context cancellation aborts retries
// immediately.
package llm
