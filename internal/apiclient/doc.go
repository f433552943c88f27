// Package apiclient is the JSON-over-HTTP client shared by the remote
// embedding, generation and extraction providers.
//
// Requests are rate limited, and network failures, 429 responses and 5xx
// responses are retried with exponential backoff. Error bodies of the form
// {"error":{"message":...}} are surfaced as the error message.
package apiclient
