// Package extraction turns document text into typed entities using a
// provider that supports schema-constrained JSON output.
//
// Only Gemini offers response schemas; every other provider is served by
// NoopExtractor, which always yields an empty list.
//
//	x, err := extraction.New(generation.ProviderConfig{Provider: "gemini", APIKey: key}, logger)
//	entities, err := x.Extract(ctx, []string{docA, docB})
package extraction
