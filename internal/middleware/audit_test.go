package middleware

import (
	"encoding/json"
	"testing"
)

func TestRedactAuditBodySecrets(t *testing.T) {
	body := []byte(`{"to":"rrrrrrrrrrrrrrrrrrrrBZbvji","drops":1000,"seed":"snoPBrXtMeMyMHUVTgbuqAfg1SUTb","nested":{"Token":"t","secret":"s"}}`)
	out := redactAuditBody(body)

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(out), &data); err != nil {
		t.Fatalf("invalid json output: %v", err)
	}
	if data["seed"] != "***" {
		t.Fatalf("seed not redacted")
	}
	if data["to"] != "rrrrrrrrrrrrrrrrrrrrBZbvji" {
		t.Fatalf("destination should be kept")
	}
	if nested, ok := data["nested"].(map[string]interface{}); ok {
		if nested["Token"] == "t" || nested["secret"] == "s" {
			t.Fatalf("nested secrets not redacted")
		}
	} else {
		t.Fatalf("nested object missing")
	}
}

func TestRedactAuditBodyKeepsPaymentResult(t *testing.T) {
	body := []byte(`{"drops":1000000,"txHash":"ABC"}`)
	out := redactAuditBody(body)
	if out != string(body) {
		t.Fatalf("unexpected redaction: %s", out)
	}
}

func TestRedactAuditBodyInvalidJSON(t *testing.T) {
	if out := redactAuditBody([]byte("not-json")); out != "[redacted]" {
		t.Fatalf("expected redacted placeholder for invalid json")
	}
	if out := redactAuditBody(nil); out != "" {
		t.Fatalf("expected empty string for empty body")
	}
}
