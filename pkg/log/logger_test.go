package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"
)

func newCaptured(level Level, f Formatter) (Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewLogger(WithLevel(level), WithFormatter(f), WithOutput(NewWriterOutput(&buf))), &buf
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newCaptured(WarnLevel, &TextFormatter{DisableTime: true})
	l.Info("hidden")
	l.Warn("shown", Str("k", "v"))
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info should be filtered: %q", out)
	}
	if !strings.Contains(out, "WARN  shown k=v") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestChildSharesLevel(t *testing.T) {
	l, buf := newCaptured(InfoLevel, &TextFormatter{DisableTime: true})
	child := l.WithComponent("pipeline")
	l.SetLevel(DebugLevel)
	child.Debug("tick")
	if !strings.Contains(buf.String(), "component=pipeline") {
		t.Fatalf("child did not inherit level change: %q", buf.String())
	}
}

func TestJSONFormatterFields(t *testing.T) {
	l, buf := newCaptured(DebugLevel, &JSONFormatter{})
	l.With(Component("feed")).Error("boom", Err(errors.New("bad")), Int64("seq", 3))
	var m map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal: %v (%q)", err, buf.String())
	}
	if m["msg"] != "boom" || m["level"] != "ERROR" || m["error"] != "bad" || m["component"] != "feed" {
		t.Fatalf("unexpected record: %v", m)
	}
	if m["seq"].(float64) != 3 {
		t.Fatalf("seq=%v", m["seq"])
	}
}

func TestApplyConfigRedactAndSample(t *testing.T) {
	l, err := ApplyConfig(&Config{Level: "debug", Format: "json", Redact: []string{"token"}, SampleInitial: 1, SampleThereafter: 100})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	var buf bytes.Buffer
	bl := l.(*BaseLogger)
	bl.outputs = []Output{NewWriterOutput(&buf)}
	l.Info("auth", Str("token", "secret"))
	l.Info("auth", Str("token", "secret"))
	if strings.Count(buf.String(), "\n") != 1 {
		t.Fatalf("expected sampling to keep one line, got %q", buf.String())
	}
	if strings.Contains(buf.String(), "secret") {
		t.Fatalf("token not redacted: %q", buf.String())
	}
}

func TestApplyConfigRejectsUnknownFormat(t *testing.T) {
	if _, err := ApplyConfig(&Config{Format: "xml"}); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestToStdLogger(t *testing.T) {
	l, buf := newCaptured(InfoLevel, &TextFormatter{DisableTime: true})
	std := ToStdLogger(l, WarnLevel)
	std.Printf("pebble says %d", 42)
	if !strings.Contains(buf.String(), "WARN  pebble says 42") {
		t.Fatalf("unexpected: %q", buf.String())
	}
}

func TestSamplerPattern(t *testing.T) {
	s := newSampler(2, 3)
	var got []bool
	for i := 0; i < 8; i++ {
		got = append(got, s.allow(0, "tick"))
	}
	want := []bool{true, true, false, false, true, false, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("record %d: got %v, want %v (all %v)", i, got[i], want[i], got)
		}
	}
}

func TestSamplerBoundsCounters(t *testing.T) {
	s := newSampler(1, 10)
	for i := 0; i < maxSampledMessages*2; i++ {
		s.allow(0, "m"+strconv.Itoa(i))
	}
	if len(s.counts) > maxSampledMessages {
		t.Fatalf("sampler kept %d counters", len(s.counts))
	}
}
