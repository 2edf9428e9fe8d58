package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil); SetLevel("info") })

	SetLevel("info")
	Debugf("hidden %d", 1)
	Infof("[ingest] shown %d", 2)
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[ingest] shown 2")

	buf.Reset()
	SetLevel("debug")
	Debugf("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestAnalyzerDump(t *testing.T) {
	var buf bytes.Buffer
	SetAnalyzerWriter(&buf)
	t.Cleanup(func() { SetAnalyzerWriter(nil) })

	LogAnalyzerRequest("gpt", "42", "sys", "user text")
	LogAnalyzerResponse("gpt", "42", `{"交易币种":"BTC"}`)
	out := buf.String()
	assert.Contains(t, out, "[ANALYZER][request][gpt][42]")
	assert.Contains(t, out, "--- USER ---\nuser text\n")
	assert.Contains(t, out, "[ANALYZER][response][gpt][42]")
	assert.Equal(t, 2, strings.Count(out, "====="))
}

func TestAnalyzerDumpDisabled(t *testing.T) {
	SetAnalyzerWriter(nil)
	assert.NotPanics(t, func() { LogAnalyzerResponse("m", "1", "x") })
}

func TestSetFormatJSON(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetFormat("text"); SetOutput(nil); SetLevel("info") })

	SetLevel("warning")
	SetFormat("JSON")
	Infof("dropped")
	Warnf("[risk] price fetch failed id=%s", "p1")

	out := strings.TrimSpace(buf.String())
	assert.NotContains(t, out, "dropped")
	assert.True(t, strings.HasPrefix(out, "{"), out)
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"msg":"[risk] price fetch failed id=p1"`)
}
