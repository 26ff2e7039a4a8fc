package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClassifyShortText(t *testing.T) {
	c := NewClient("http://unused.invalid")

	res := c.Classify(context.Background(), "ok sounds good")
	if res.Label != LabelNone {
		t.Errorf("label = %s, want NONE", res.Label)
	}
	if res.Confidence != 0.0 {
		t.Errorf("confidence = %v, want 0", res.Confidence)
	}
	if res.Reason != "too short" {
		t.Errorf("reason = %q", res.Reason)
	}
}

func TestClassifyRemote(t *testing.T) {
	var gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		gotText = req.Text
		json.NewEncoder(w).Encode(map[string]any{
			"classification": "DECISION",
			"confidence":     0.97311119,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	res := c.Classify(context.Background(), "we decided to migrate the queue to kafka")

	if gotText != "we decided to migrate the queue to kafka" {
		t.Errorf("service received %q", gotText)
	}
	if res.Label != LabelDecision {
		t.Errorf("label = %s", res.Label)
	}
	if res.Confidence != 0.9731 {
		t.Errorf("confidence = %v, want rounded 0.9731", res.Confidence)
	}
}

func TestClassifyFallbackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	res := NewClient(srv.URL).Classify(context.Background(), "we decided to migrate the queue to kafka")
	if res.Label != LabelGeneralConversation || res.Confidence != 0.5 {
		t.Errorf("got %v, want neutral default", res)
	}
}

func TestClassifyFallbackOnTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	res := NewClient(srv.URL).Classify(context.Background(), "we decided to migrate the queue to kafka")
	if res.Label != LabelGeneralConversation || res.Confidence != 0.5 {
		t.Errorf("got %v, want neutral default", res)
	}
}

func TestClassifyUnconfigured(t *testing.T) {
	c := NewClient("")
	if c.Enabled() {
		t.Error("empty base URL should disable the client")
	}
	res := c.Classify(context.Background(), "this is a long enough message for the model")
	if res.Label != LabelGeneralConversation || res.Confidence != 0.5 {
		t.Errorf("got %v, want neutral default", res)
	}
}
