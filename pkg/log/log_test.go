package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	pkgerrors "github.com/YuminosukeSato/diabench/pkg/errors"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestZerologLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelInfo, FormatJSON)

	logger.Debug("hidden")
	logger.With(ModelNameKey, "KNN").Info("Search finished", CandidatesKey, 12, CVScoreKey, 0.95)

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (debug filtered), got %d: %s", len(lines), buf.String())
	}
	entry := lines[0]
	if entry["message"] != "Search finished" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry[ModelNameKey] != "KNN" {
		t.Errorf("%s = %v", ModelNameKey, entry[ModelNameKey])
	}
	if entry[CandidatesKey] != 12.0 {
		t.Errorf("%s = %v", CandidatesKey, entry[CandidatesKey])
	}
}

func TestZerologLogger_ErrorWithStack(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelDebug, FormatJSON)

	err := pkgerrors.NewMissingColumnError("data.csv", []string{"IMC"})
	logger.Error("Load failed", err, PathKey, "data.csv")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	entry := lines[0]
	if !strings.Contains(fmt.Sprint(entry["error"]), "missing required column(s): IMC") {
		t.Errorf("error field = %v", entry["error"])
	}
	if entry[PathKey] != "data.csv" {
		t.Errorf("%s = %v", PathKey, entry[PathKey])
	}
	if _, ok := entry[StacktraceKey]; !ok {
		t.Errorf("expected %s field, got %v", StacktraceKey, entry)
	}
}

func TestZerologLogger_Enabled(t *testing.T) {
	logger := NewZerologLogger(&bytes.Buffer{}, LevelWarn, FormatJSON)
	ctx := context.Background()
	if logger.Enabled(ctx, LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !logger.Enabled(ctx, LevelError) {
		t.Error("error should be enabled at warn level")
	}
}

func TestRouteWarnings(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)
	RouteWarnings(testLogger)
	defer pkgerrors.SetZerologWarnFunc(nil)

	pkgerrors.Warn(pkgerrors.NewConvergenceWarning("MLPClassifier", 1000, "max_iter reached"))

	warns := testLogger.EntriesAt(LevelWarn)
	if len(warns) != 1 {
		t.Fatalf("expected 1 warning entry, got %d", len(warns))
	}
	if !strings.Contains(warns[0]["message"].(string), "MLPClassifier failed to converge") {
		t.Errorf("unexpected message %v", warns[0]["message"])
	}
}

func TestZerologProvider(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf, LevelError, FormatJSON, RunIDKey, "run-1")

	p.GetLoggerWithName("evaluation").Info("dropped")
	p.SetLevel(LevelInfo)
	p.GetLoggerWithName("evaluation").Info("kept")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0][ComponentKey] != "evaluation" || lines[0][RunIDKey] != "run-1" {
		t.Errorf("unexpected fields: %v", lines[0])
	}
}

func TestTestLogger(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelInfo)

	contextLogger := testLogger.With(ModelNameKey, "SVC", ComponentKey, "search")
	contextLogger.Debug("filtered")
	contextLogger.Warn("Combination skipped", SkipReasonKey, "incompatible", TrialKey, 3)
	contextLogger.Error("failed", fmt.Errorf("boom"), OperationKey, OperationFit)

	if buffer.Len() == 0 {
		t.Fatal("expected output")
	}
	if testLogger.ContainsMessage("filtered") {
		t.Error("debug entry should be filtered")
	}
	if !testLogger.ContainsField(ModelNameKey, "SVC") {
		t.Error("context field missing")
	}
	if !testLogger.ContainsField(TrialKey, 3.0) {
		t.Error("numeric field missing")
	}
	if !testLogger.ContainsField("error", "boom") {
		t.Error("leading error should be stored under \"error\"")
	}
	if got := len(testLogger.EntriesAt(LevelWarn)); got != 1 {
		t.Errorf("EntriesAt(Warn) = %d, want 1", got)
	}

	testLogger.Clear()
	if buffer.Len() != 0 {
		t.Error("Clear should reset buffer")
	}
}

func TestTestLogger_Concurrent(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			testLogger.With(FoldKey, i).Debug("fold scored")
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 20 {
		t.Errorf("expected 20 entries, got %d", len(entries))
	}
}

func TestTestLoggerProvider(t *testing.T) {
	provider, _ := NewTestLoggerProvider(LevelWarn)
	provider.GetLoggerWithName("dataset").Info("hidden")
	provider.SetLevel(LevelInfo)
	provider.GetLoggerWithName("dataset").Info("shown")

	if provider.Logger().ContainsMessage("hidden") {
		t.Error("message below level should be dropped")
	}
	if !provider.Logger().ContainsField(ComponentKey, "dataset") {
		t.Error("component field missing")
	}
}
