package gotest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Test event actions emitted by go test -json
const (
	ActionStart       = "start"
	ActionRun         = "run"
	ActionPass        = "pass"
	ActionFail        = "fail"
	ActionSkip        = "skip"
	ActionOutput      = "output"
	ActionBuildOutput = "build-output"
)

// TestEvent is one line of go test -json output
type TestEvent struct {
	Time        time.Time
	Action      string
	Package     string
	ImportPath  string
	Test        string
	Elapsed     float64
	Output      string
	FailedBuild string
}

// testState accumulates the events of one top-level test
type testState struct {
	action string
	output strings.Builder
}

// packageRun is the parsed output of one go test invocation
type packageRun struct {
	tests   map[string]*testState
	order   []string
	failed  bool
	output  strings.Builder
}

// parseEvents reads go test -json output. Lines that are not JSON (for example
// build errors printed by older toolchains) are kept as package output.
func parseEvents(data []byte) *packageRun {
	run := &packageRun{tests: make(map[string]*testState)}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		var ev TestEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			run.output.Write(line)
			run.output.WriteByte('\n')
			continue
		}
		run.apply(ev)
	}
	return run
}

func (r *packageRun) apply(ev TestEvent) {
	if ev.Action == ActionBuildOutput {
		r.output.WriteString(ev.Output)
		return
	}
	if ev.Test == "" {
		switch ev.Action {
		case ActionOutput:
			r.output.WriteString(ev.Output)
		case ActionFail:
			r.failed = true
		}
		return
	}

	// subtest events fold into their top-level test
	name, _, isSub := strings.Cut(ev.Test, "/")
	st, ok := r.tests[name]
	if !ok {
		st = &testState{}
		r.tests[name] = st
		r.order = append(r.order, name)
	}
	switch ev.Action {
	case ActionOutput:
		st.output.WriteString(ev.Output)
	case ActionPass, ActionFail, ActionSkip:
		if !isSub {
			st.action = ev.Action
		}
	}
}
