package logger

import (
	"io"
	"log"
	"strings"
	"sync"
)

var (
	analyzerMu  sync.Mutex
	analyzerLog *log.Logger
)

// SetAnalyzerWriter 设置分析器请求/响应的转储目标，nil 关闭转储。
func SetAnalyzerWriter(w io.Writer) {
	analyzerMu.Lock()
	defer analyzerMu.Unlock()
	if w == nil {
		analyzerLog = nil
		return
	}
	analyzerLog = log.New(w, "", log.LstdFlags)
}

type dumpSection struct {
	Title string
	Body  string
}

func dump(kind, model, itemID string, sections []dumpSection) {
	analyzerMu.Lock()
	l := analyzerLog
	analyzerMu.Unlock()
	if l == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[ANALYZER]")
	for _, tag := range []string{kind, model, itemID} {
		if tag == "" {
			continue
		}
		b.WriteString("[")
		b.WriteString(tag)
		b.WriteString("]")
	}
	b.WriteString("\n")
	for _, sec := range sections {
		t := strings.TrimSpace(sec.Title)
		if t == "" {
			t = "CONTENT"
		}
		b.WriteString("--- ")
		b.WriteString(t)
		b.WriteString(" ---\n")
		b.WriteString(sec.Body)
		if !strings.HasSuffix(sec.Body, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("=====\n")
	l.Print(b.String())
}

func LogAnalyzerRequest(model, itemID, systemPrompt, userPrompt string) {
	dump("request", model, itemID, []dumpSection{
		{Title: "SYSTEM", Body: systemPrompt},
		{Title: "USER", Body: userPrompt},
	})
}

func LogAnalyzerResponse(model, itemID, raw string) {
	dump("response", model, itemID, []dumpSection{{Title: "RAW", Body: raw}})
}
