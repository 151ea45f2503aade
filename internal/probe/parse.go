package probe

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// lintReport is the normalized outcome of a lint run.
type lintReport struct {
	errors   int
	warnings int
	first    string // first diagnostic, for display
}

// lintParser turns a tool's output into counts. It returns an error when
// the output is not in the expected format.
type lintParser func(Output) (lintReport, error)

var errUnreadable = errors.New("unreadable tool output")

// goDiagRe matches "path/file.go:12:3: message" lines from go vet.
var goDiagRe = regexp.MustCompile(`^\S+\.go:\d+(:\d+)?: `)

// parseGoVet counts go vet diagnostics; every finding is an error. A
// failing run without diagnostics (build failure) counts as one error.
func parseGoVet(out Output) (lintReport, error) {
	var rep lintReport
	for _, line := range lines(out.Combined) {
		if goDiagRe.MatchString(line) {
			rep.errors++
			if rep.first == "" {
				rep.first = line
			}
		}
	}
	if out.ExitCode != 0 && rep.errors == 0 {
		rep.errors = 1
		rep.first = lastLine(out.Combined)
	}
	return rep, nil
}

type golangciReport struct {
	Issues []struct {
		FromLinter string `json:"FromLinter"`
		Text       string `json:"Text"`
		Severity   string `json:"Severity"`
		Pos        struct {
			Filename string `json:"Filename"`
			Line     int    `json:"Line"`
		} `json:"Pos"`
	} `json:"Issues"`
}

// parseGolangci reads golangci-lint's JSON report. Issues without a
// severity are errors.
func parseGolangci(out Output) (lintReport, error) {
	var r golangciReport
	if err := json.Unmarshal([]byte(firstJSON(out.Stdout)), &r); err != nil {
		return lintReport{}, fmt.Errorf("%w: golangci-lint: %v", errUnreadable, err)
	}
	var rep lintReport
	for _, is := range r.Issues {
		if strings.EqualFold(is.Severity, "warning") {
			rep.warnings++
		} else {
			rep.errors++
		}
		if rep.first == "" {
			rep.first = fmt.Sprintf("%s:%d: %s (%s)", is.Pos.Filename, is.Pos.Line, is.Text, is.FromLinter)
		}
	}
	return rep, nil
}

type ruffDiagnostic struct {
	Code     *string `json:"code"`
	Message  string  `json:"message"`
	Filename string  `json:"filename"`
	Location struct {
		Row int `json:"row"`
	} `json:"location"`
}

// parseRuff reads `ruff check --output-format json`. pycodestyle errors
// (E), pyflakes (F) and syntax errors (no code) are errors; every other
// rule family is a warning.
func parseRuff(out Output) (lintReport, error) {
	var diags []ruffDiagnostic
	if err := json.Unmarshal([]byte(firstJSON(out.Stdout)), &diags); err != nil {
		return lintReport{}, fmt.Errorf("%w: ruff: %v", errUnreadable, err)
	}
	var rep lintReport
	for _, d := range diags {
		code := ""
		if d.Code != nil {
			code = *d.Code
		}
		if code == "" || strings.HasPrefix(code, "E") || strings.HasPrefix(code, "F") {
			rep.errors++
		} else {
			rep.warnings++
		}
		if rep.first == "" {
			rep.first = fmt.Sprintf("%s:%d: %s %s", d.Filename, d.Location.Row, code, d.Message)
		}
	}
	return rep, nil
}

type eslintFile struct {
	FilePath     string `json:"filePath"`
	ErrorCount   int    `json:"errorCount"`
	WarningCount int    `json:"warningCount"`
	Messages     []struct {
		Message string `json:"message"`
		Line    int    `json:"line"`
	} `json:"messages"`
}

// parseESLint reads `eslint -f json`.
func parseESLint(out Output) (lintReport, error) {
	var files []eslintFile
	if err := json.Unmarshal([]byte(firstJSON(out.Stdout)), &files); err != nil {
		return lintReport{}, fmt.Errorf("%w: eslint: %v", errUnreadable, err)
	}
	var rep lintReport
	for _, f := range files {
		rep.errors += f.ErrorCount
		rep.warnings += f.WarningCount
		if rep.first == "" && len(f.Messages) > 0 {
			rep.first = fmt.Sprintf("%s:%d: %s", f.FilePath, f.Messages[0].Line, f.Messages[0].Message)
		}
	}
	return rep, nil
}

type cargoMessage struct {
	Reason  string `json:"reason"`
	Message struct {
		Level    string            `json:"level"`
		Message  string            `json:"message"`
		Rendered string            `json:"rendered"`
		Spans    []json.RawMessage `json:"spans"`
	} `json:"message"`
}

// parseClippy reads `cargo clippy --message-format json` (one JSON object
// per line). Summary messages without source spans are skipped.
func parseClippy(out Output) (lintReport, error) {
	var rep lintReport
	var seen bool
	sc := bufio.NewScanner(strings.NewReader(out.Stdout))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var m cargoMessage
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			continue
		}
		seen = true
		if m.Reason != "compiler-message" || len(m.Message.Spans) == 0 {
			continue
		}
		switch m.Message.Level {
		case "error":
			rep.errors++
		case "warning":
			rep.warnings++
		default:
			continue
		}
		if rep.first == "" {
			rep.first = m.Message.Level + ": " + m.Message.Message
		}
	}
	if !seen {
		return lintReport{}, fmt.Errorf("%w: cargo clippy produced no JSON messages", errUnreadable)
	}
	return rep, nil
}

var (
	errorWordRe   = regexp.MustCompile(`(?i)\berror\b`)
	warningWordRe = regexp.MustCompile(`(?i)\bwarning\b`)
)

// parseGenericLint counts lines mentioning "error" or "warning" in the
// output of a user-configured lint command. A failing run with no such
// lines counts as one error.
func parseGenericLint(out Output) (lintReport, error) {
	var rep lintReport
	for _, line := range lines(out.Combined) {
		switch {
		case errorWordRe.MatchString(line):
			rep.errors++
		case warningWordRe.MatchString(line):
			rep.warnings++
		default:
			continue
		}
		if rep.first == "" {
			rep.first = line
		}
	}
	if out.ExitCode != 0 && rep.errors == 0 {
		rep.errors = 1
		rep.first = lastLine(out.Combined)
	}
	return rep, nil
}

// coverParser extracts a coverage percentage. ok is false when the output
// holds no coverage figure at all.
type coverParser func(Output) (pct float64, ok bool)

// goCoverTotalRe matches the `go tool cover -func` summary line.
var goCoverTotalRe = regexp.MustCompile(`(?m)^total:\s+\(statements\)\s+(\d+(?:\.\d+)?)%`)

func parseGoCoverFunc(out Output) (float64, bool) {
	m := goCoverTotalRe.FindStringSubmatch(out.Combined)
	if m == nil {
		return 0, false
	}
	return parsePercent(m[1])
}

var (
	totalLineRe = regexp.MustCompile(`(?m)^TOTAL\s.*$`)
	percentRe   = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)
)

// parsePytestCov reads the TOTAL row of a pytest-cov terminal report,
// whose last column is the percentage.
func parsePytestCov(out Output) (float64, bool) {
	row := totalLineRe.FindString(out.Combined)
	if row == "" {
		return 0, false
	}
	pcts := percentRe.FindAllStringSubmatch(row, -1)
	if len(pcts) == 0 {
		return 0, false
	}
	return parsePercent(pcts[len(pcts)-1][1])
}

// parseLLVMCov reads the TOTAL row of `cargo llvm-cov --summary-only`.
// The row carries region, function and line percentages in that order;
// line coverage is the third.
func parseLLVMCov(out Output) (float64, bool) {
	row := totalLineRe.FindString(out.Combined)
	if row == "" {
		return 0, false
	}
	pcts := percentRe.FindAllStringSubmatch(row, -1)
	switch {
	case len(pcts) >= 3:
		return parsePercent(pcts[2][1])
	case len(pcts) > 0:
		return parsePercent(pcts[len(pcts)-1][1])
	}
	return 0, false
}

// parseLastPercent takes the last "NN.N%" token of a user-configured
// coverage command's output.
func parseLastPercent(out Output) (float64, bool) {
	pcts := percentRe.FindAllStringSubmatch(out.Combined, -1)
	if len(pcts) == 0 {
		return 0, false
	}
	return parsePercent(pcts[len(pcts)-1][1])
}

func parsePercent(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return min(max(v, 0), 100), true
}

// failureLineRe matches lines test runners print for failures.
var failureLineRe = regexp.MustCompile(`(?i)(^--- FAIL|^FAIL\b|\bFAILED\b|\bfailed\b|^error|panic:)`)

// testFailureDetail picks the most telling line of a failed test run.
func testFailureDetail(out Output) string {
	for _, line := range lines(out.Combined) {
		if failureLineRe.MatchString(line) {
			return line
		}
	}
	return lastLine(out.Combined)
}

// firstJSON trims anything a tool printed before its JSON document.
func firstJSON(s string) string {
	if i := strings.IndexAny(s, "[{"); i > 0 {
		return s[i:]
	}
	return s
}

func lines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func lastLine(s string) string {
	ls := lines(s)
	if len(ls) == 0 {
		return ""
	}
	return ls[len(ls)-1]
}
