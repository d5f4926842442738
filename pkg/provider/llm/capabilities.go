package llm

import "strings"

// DefaultCapabilities applies to models not listed in the family table.
var DefaultCapabilities = ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 4_096}

// modelFamilies is matched top to bottom against the lowercased model name;
// more specific prefixes come first.
var modelFamilies = []struct {
	match string
	caps  ModelCapabilities
}{
	{"gpt-4o-mini", ModelCapabilities{128_000, 16_384}},
	{"gpt-4o", ModelCapabilities{128_000, 16_384}},
	{"gpt-4.1", ModelCapabilities{1_047_576, 32_768}},
	{"gpt-4-turbo", ModelCapabilities{128_000, 4_096}},
	{"gpt-4", ModelCapabilities{8_192, 4_096}},
	{"gpt-3.5-turbo", ModelCapabilities{16_385, 4_096}},
	{"o1-mini", ModelCapabilities{128_000, 65_536}},
	{"o1", ModelCapabilities{200_000, 100_000}},
	{"o3", ModelCapabilities{200_000, 100_000}},
	{"claude-3-opus", ModelCapabilities{200_000, 4_096}},
	{"claude", ModelCapabilities{200_000, 8_192}},
	{"gemini-1.5-pro", ModelCapabilities{2_097_152, 8_192}},
	{"gemini", ModelCapabilities{1_048_576, 8_192}},
	{"mistral", ModelCapabilities{32_000, 4_096}},
	{"llama", ModelCapabilities{8_192, 2_048}},
}

// LookupCapabilities returns the known limits of a model by name family.
// Unknown models receive DefaultCapabilities.
func LookupCapabilities(model string) ModelCapabilities {
	lower := strings.ToLower(model)
	for _, f := range modelFamilies {
		if strings.HasPrefix(lower, f.match) {
			return f.caps
		}
	}
	return DefaultCapabilities
}
