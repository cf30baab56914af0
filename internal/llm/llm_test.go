// File path: internal/llm/llm_test.go
package llm

import (
	"encoding/json"
	"testing"
)

func TestNewProviderFallsBackToLocal(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	provider := NewProvider()
	if provider.Name() != "local" {
		t.Fatalf("expected local provider without api key, got %s", provider.Name())
	}
}

func TestNormalizeMessages(t *testing.T) {
	messages, err := NormalizeMessages([]Message{{Role: "SYSTEM", Content: "x"}, {Role: "User", Content: "y"}})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if messages[0].Role != "system" || messages[1].Role != "user" {
		t.Fatalf("roles not lowered: %+v", messages)
	}
	if _, err := NormalizeMessages(nil); err == nil {
		t.Fatal("expected error for empty batch")
	}
}

func TestExtractJSONFromProse(t *testing.T) {
	reply := "Sure! Here is the result:\n```json\n{\"domain\": \"finance\", \"confidence\": 0.9}\n```\nLet me know if you need more."
	blob := ExtractJSON(reply)
	if blob == "" {
		t.Fatal("expected a JSON blob")
	}
	var parsed struct {
		Domain     string  `json:"domain"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(blob), &parsed); err != nil {
		t.Fatalf("unmarshal extracted blob: %v", err)
	}
	if parsed.Domain != "finance" || parsed.Confidence != 0.9 {
		t.Fatalf("unexpected parse result: %+v", parsed)
	}
}

func TestExtractJSONEmpty(t *testing.T) {
	if got := ExtractJSON("no json here"); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}

func TestExtractJSONArray(t *testing.T) {
	reply := "Questions:\n[\"q1\", \"q2\"]"
	blob := ExtractJSONArray(reply)
	var parsed []string
	if err := json.Unmarshal([]byte(blob), &parsed); err != nil {
		t.Fatalf("unmarshal array: %v", err)
	}
	if len(parsed) != 2 || parsed[0] != "q1" {
		t.Fatalf("unexpected array: %v", parsed)
	}
}
