package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Debug("should not appear")
	log.Info("should not appear either")
	log.Warn("warned", Bool("ok", false))
	log.Error("errored", Int("code", 500))

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("messages below the configured level leaked through: %s", out)
	}
	for _, want := range []string{"[WARN] warned ok=false", "[ERROR] errored code=500"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got: %s", want, out)
		}
	}
}

func TestLogger_FieldRendering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Output: &buf})

	log.Debug("frame",
		String("node", "310001"),
		Int64("stream", 9000),
		Uint32("tg", 3172),
		Float64("rssi", -92.5),
		Error(nil),
	)

	out := buf.String()
	for _, want := range []string{"node=310001", "stream=9000", "tg=3172", "rssi=-92.5", "error=nil"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected field %q in output, got: %s", want, out)
		}
	}
}

func TestLogger_WithComponentPrefixesAndSharesOutput(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: "info", Output: &buf})
	relayComp := base.WithComponent("relay")
	mqttComp := base.WithComponent("mqtt")

	relayComp.Info("started")
	mqttComp.Info("connected")

	out := buf.String()
	for _, want := range []string{"[relay] started", "[mqtt] connected"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got: %s", want, out)
		}
	}
}

func TestLogger_JSONFormatProducesValidObjects(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf}).WithComponent("radioid")

	log.Info("sync complete", Int64("total_users", 1200))

	line := strings.TrimSpace(buf.String())
	var rec map[string]interface{}
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		t.Fatalf("json format did not produce a valid JSON line: %v (%s)", err, line)
	}
	if rec["msg"] != "sync complete" {
		t.Errorf("msg = %v, want %q", rec["msg"], "sync complete")
	}
	if rec["component"] != "radioid" {
		t.Errorf("component = %v, want %q", rec["component"], "radioid")
	}
	if rec["total_users"] != float64(1200) {
		t.Errorf("total_users = %v, want 1200", rec["total_users"])
	}
}

func TestLogger_FormatIsCaseInsensitive(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "JSON", Output: &buf})
	log.Info("hi")
	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("expected JSON output for Format=JSON, got: %s", buf.String())
	}
}

func TestFromDebugFlag(t *testing.T) {
	if FromDebugFlag(0) != InfoLevel {
		t.Error("debug.level=0 must map to InfoLevel")
	}
	if FromDebugFlag(1) != DebugLevel {
		t.Error("debug.level>=1 must map to DebugLevel")
	}
	if FromDebugFlag(5) != DebugLevel {
		t.Error("debug.level>=1 must map to DebugLevel regardless of magnitude")
	}
}

func TestLevel_String(t *testing.T) {
	cases := map[Level]string{
		DebugLevel: "DEBUG",
		InfoLevel:  "INFO",
		WarnLevel:  "WARN",
		ErrorLevel: "ERROR",
	}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Errorf("Level(%d).String() = %q, want %q", level, got, want)
		}
	}
}
