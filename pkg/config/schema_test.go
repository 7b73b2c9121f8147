package config

import (
	"encoding/json"
	"testing"
)

func TestSchemaJSON(t *testing.T) {
	data, err := SchemaJSON()
	if err != nil {
		t.Fatalf("SchemaJSON failed: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Schema is not valid JSON: %v", err)
	}

	if doc["title"] != "SandFS Configuration" {
		t.Errorf("Unexpected title %v", doc["title"])
	}

	props, ok := doc["properties"].(map[string]any)
	if !ok {
		t.Fatal("Schema has no properties")
	}
	for _, section := range []string{"logging", "server", "users", "sandbox", "adapters"} {
		if _, ok := props[section]; !ok {
			t.Errorf("Schema missing section %q", section)
		}
	}
}
