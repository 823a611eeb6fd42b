package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestFastPathNoTelemetry(t *testing.T) {
	// Ensure no telemetry reporter is active
	SetTelemetryReporter(nil)

	// Create an error - should use fast path
	err := fmt.Errorf("test error")
	ee := New(err).Build()

	if ee.Err.Error() != "test error" {
		t.Errorf("Expected error message 'test error', got '%s'", ee.Err.Error())
	}

	if ee.GetComponent() != ComponentUnknown {
		t.Errorf("Expected component 'unknown' in fast path, got '%s'", ee.GetComponent())
	}

	if ee.Category != CategoryGeneric {
		t.Errorf("Expected category 'generic' in fast path, got '%s'", ee.Category)
	}
}

func TestBuilderFields(t *testing.T) {
	ee := Newf("segment load failed: %s", "rec1.wav").
		Component("myaudio").
		Category(CategoryFileIO).
		Context("offset", 1.5).
		Context("duration", 3.0).
		Build()

	if ee.GetComponent() != "myaudio" {
		t.Errorf("Expected component 'myaudio', got '%s'", ee.GetComponent())
	}
	if ee.Category != CategoryFileIO {
		t.Errorf("Expected category 'file-io', got '%s'", ee.Category)
	}

	ctx := ee.GetContext()
	if ctx["offset"] != 1.5 || ctx["duration"] != 3.0 {
		t.Errorf("Context not preserved: %v", ctx)
	}

	// Returned context must be a copy
	ctx["offset"] = 99.0
	if ee.GetContext()["offset"] != 1.5 {
		t.Error("GetContext returned a mutable reference to internal state")
	}
}

func TestUnwrapAndIs(t *testing.T) {
	sentinel := NewStd("sentinel")
	wrapped := New(fmt.Errorf("outer: %w", sentinel)).Category(CategoryValidation).Build()

	if !Is(wrapped, sentinel) {
		t.Error("errors.Is should see through EnhancedError to the sentinel")
	}

	var ee *EnhancedError
	if !As(wrapped, &ee) {
		t.Fatal("errors.As should extract *EnhancedError")
	}
	if ee.Category != CategoryValidation {
		t.Errorf("Expected validation category, got %s", ee.Category)
	}
}

func TestIsCategory(t *testing.T) {
	ee := New(NewStd("boom")).Category(CategoryDatabase).Build()
	if !IsCategory(ee, CategoryDatabase) {
		t.Error("IsCategory should match the assigned category")
	}
	if IsCategory(ee, CategoryNetwork) {
		t.Error("IsCategory should not match a different category")
	}
	if IsCategory(NewStd("plain"), CategoryDatabase) {
		t.Error("IsCategory should be false for non-enhanced errors")
	}
}

func TestPriorityValidation(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"valid critical", PriorityCritical, PriorityCritical},
		{"valid low", PriorityLow, PriorityLow},
		{"invalid falls back to medium", "urgent!!", PriorityMedium},
		{"empty stays empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ee := New(NewStd("x")).Priority(tt.input).Build()
			if ee.GetPriority() != tt.want {
				t.Errorf("Priority(%q) = %q, want %q", tt.input, ee.GetPriority(), tt.want)
			}
		})
	}
}

func TestMarkReported(t *testing.T) {
	ee := New(NewStd("x")).Build()
	if ee.IsReported() {
		t.Error("new error should not be marked reported")
	}
	ee.MarkReported()
	if !ee.IsReported() {
		t.Error("MarkReported should set the reported flag")
	}
}

func TestBasicURLScrub(t *testing.T) {
	// URL query scrubbing
	testMessage1 := "Error at https://api.example.com?api_key=secret123&token=abc"
	scrubbed1 := basicURLScrub(testMessage1)
	expected1 := "Error at https://api.example.com?[REDACTED]"
	if scrubbed1 != expected1 {
		t.Errorf("URL scrubbing failed. Expected: %s, got: %s", expected1, scrubbed1)
	}

	// API key scrubbing in non-URL context
	testMessage2 := "Config error: api_key=secret123 is invalid"
	scrubbed2 := basicURLScrub(testMessage2)
	if !strings.Contains(scrubbed2, "[API_KEY_REDACTED]") {
		t.Errorf("API key scrubbing failed. Expected to contain '[API_KEY_REDACTED]', got: %s", scrubbed2)
	}

	// Multiple patterns
	testMessage3 := "Auth failed with token=abc123 and auth=xyz789"
	scrubbed3 := basicURLScrub(testMessage3)
	if strings.Contains(scrubbed3, "abc123") || strings.Contains(scrubbed3, "xyz789") {
		t.Errorf("Token scrubbing failed. Sensitive data still present: %s", scrubbed3)
	}
}

type stubReporter struct {
	enabled bool
	got     []*EnhancedError
}

func (s *stubReporter) ReportError(ee *EnhancedError) { s.got = append(s.got, ee) }
func (s *stubReporter) IsEnabled() bool               { return s.enabled }

func TestReporterReceivesBuiltErrors(t *testing.T) {
	rep := &stubReporter{enabled: true}
	SetTelemetryReporter(rep)
	defer SetTelemetryReporter(nil)

	ee := New(NewStd("publish failed")).Category(CategoryMQTTPublish).Build()

	if len(rep.got) != 1 {
		t.Fatalf("expected 1 reported error, got %d", len(rep.got))
	}
	if rep.got[0] != ee {
		t.Error("reporter should receive the built error")
	}
}

func TestDisabledReporterNotCalled(t *testing.T) {
	rep := &stubReporter{enabled: false}
	SetTelemetryReporter(rep)
	defer SetTelemetryReporter(nil)

	New(NewStd("x")).Build()

	if len(rep.got) != 0 {
		t.Errorf("disabled reporter should not receive errors, got %d", len(rep.got))
	}
}
