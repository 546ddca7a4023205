package pdsclient

import (
	"encoding/json"
	"testing"
)

func TestNewRecordValueRequiresType(t *testing.T) {
	if _, err := NewRecordValue(map[string]interface{}{"text": "hello"}); err == nil {
		t.Error("expected error for record value missing $type")
	}
	if _, err := NewRecordValue(nil); err == nil {
		t.Error("expected error for nil record value")
	}
	if _, err := NewRecordValue(map[string]interface{}{"$type": ""}); err == nil {
		t.Error("expected error for empty $type")
	}
}

func TestWithTypeInjectsType(t *testing.T) {
	rv, err := WithType("app.bsky.feed.post", map[string]interface{}{"text": "hello"})
	if err != nil {
		t.Fatalf("WithType failed: %v", err)
	}
	if rv.RecordType() != "app.bsky.feed.post" {
		t.Errorf("expected app.bsky.feed.post, got %s", rv.RecordType())
	}
	if rv.AsValue()["text"] != "hello" {
		t.Errorf("expected text field to survive injection, got %v", rv.AsValue())
	}
}

func TestRecordValueJSONRoundTrip(t *testing.T) {
	rv, err := WithType("app.bsky.feed.post", map[string]interface{}{"text": "hello"})
	if err != nil {
		t.Fatalf("WithType failed: %v", err)
	}

	raw, err := json.Marshal(rv)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded RecordValue
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.RecordType() != "app.bsky.feed.post" {
		t.Errorf("expected type to survive round-trip, got %s", decoded.RecordType())
	}
}

func TestRecordValueUnmarshalRejectsMissingType(t *testing.T) {
	var rv RecordValue
	err := json.Unmarshal([]byte(`{"text":"hello"}`), &rv)
	if err == nil {
		t.Error("expected error unmarshaling a record value without $type")
	}
}
