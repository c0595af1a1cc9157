package logging

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/mues-io/muesd/iface"
)

func TestLogWritesStructuredJSON(t *testing.T) {
	var buf strings.Builder
	sink := New(&buf)

	sink.Log(iface.SeverityWarn, "something happened", iface.F("tick", 7), iface.F("reason", "timeout"))

	var record map[string]any
	if err := json.Unmarshal([]byte(buf.String()), &record); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if record["message"] != "something happened" {
		t.Fatalf("message = %v", record["message"])
	}
	if record["level"] != "warn" {
		t.Fatalf("level = %v, want warn", record["level"])
	}
	if record["reason"] != "timeout" {
		t.Fatalf("reason = %v, want timeout", record["reason"])
	}
}

func TestSeverityMapping(t *testing.T) {
	// SeverityCrit and SeverityFatal both map to zerolog's ErrorLevel, not
	// FatalLevel: zerolog attaches an os.Exit(1) done-callback to FatalLevel
	// regardless of whether it's reached via Logger.Fatal() or
	// WithLevel(FatalLevel), and a log call must never terminate the
	// process on its own.
	cases := map[iface.Severity]string{
		iface.SeverityDebug: "debug",
		iface.SeverityInfo:  "info",
		iface.SeverityWarn:  "warn",
		iface.SeverityError: "error",
		iface.SeverityCrit:  "error",
		iface.SeverityFatal: "error",
	}
	for sev, want := range cases {
		var buf strings.Builder
		New(&buf).Log(sev, "x")
		var record map[string]any
		if err := json.Unmarshal([]byte(buf.String()), &record); err != nil {
			t.Fatalf("severity %v: invalid JSON: %v", sev, err)
		}
		if record["level"] != want {
			t.Fatalf("severity %v: level = %v, want %v", sev, record["level"], want)
		}
	}
}
