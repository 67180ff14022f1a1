// Copyright 2026 The Classdeck Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// report_gen merges `go test -json` output with the structured annotation
// blocks on test functions (TestPurpose, Scope, Security, Expected,
// Test Case ID) and writes JSON and Markdown reports grouped by subsystem.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const modulePath = "github.com/classdeck/classdeck"

// annotation holds the metadata parsed from a test's doc comment.
type annotation struct {
	Name       string `json:"name"`
	Purpose    string `json:"purpose,omitempty"`
	Scope      string `json:"scope,omitempty"`
	Security   string `json:"security,omitempty"`
	Expected   string `json:"expected,omitempty"`
	TestCaseID string `json:"test_case_id,omitempty"`
	Package    string `json:"package"`
	Category   string `json:"category"`
}

type testEvent struct {
	Action  string  `json:"Action"`
	Package string  `json:"Package"`
	Test    string  `json:"Test"`
	Elapsed float64 `json:"Elapsed"`
	Output  string  `json:"Output"`
}

type result struct {
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	Elapsed     float64    `json:"elapsed_seconds"`
	Package     string     `json:"package"`
	Failure     string     `json:"failure_reason,omitempty"`
	Annotations annotation `json:"annotations"`
}

type report struct {
	GeneratedAt time.Time `json:"generated_at"`
	Total       int       `json:"total"`
	Passed      int       `json:"passed"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	Results     []result  `json:"results"`
}

// categoryOrder fixes the section order in the Markdown report.
var categoryOrder = []string{
	"Tenancy", "Session", "RBAC", "Tenant", "Upstream", "Audit",
	"Auth API", "Tenant API", "API", "System", "E2E", "Other",
}

func main() {
	inputPath := flag.String("input", "", "Path to go test -json output file")
	outputJSON := flag.String("out-json", "", "Path for output JSON report")
	outputMD := flag.String("out-md", "", "Path for output Markdown report")
	title := flag.String("title", "Test Report", "Report title")
	flag.Parse()

	if *inputPath == "" || *outputJSON == "" || *outputMD == "" {
		fmt.Println("Usage: report_gen -input <json_file> -out-json <out_json> -out-md <out_md>")
		os.Exit(1)
	}

	annotations := scanAnnotations()
	rep := merge(*inputPath, annotations)

	writeJSON(rep, *outputJSON)
	writeMarkdown(rep, *outputMD, *title)

	if rep.Failed > 0 {
		fmt.Printf("report_gen: %d tests failed\n", rep.Failed)
		os.Exit(1)
	}
}

// scanAnnotations walks the tree parsing doc comments from _test.go files.
func scanAnnotations() map[string]annotation {
	out := make(map[string]annotation)
	fset := token.NewFileSet()

	filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, "_test.go") {
			return nil
		}
		node, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			return nil
		}

		pkg := packagePath(path)
		for _, decl := range node.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || !strings.HasPrefix(fn.Name.Name, "Test") {
				continue
			}
			a := annotation{
				Name:     fn.Name.Name,
				Package:  pkg,
				Category: categoryFor(pkg, fn.Name.Name),
			}
			if fn.Doc != nil {
				fillAnnotation(&a, fn.Doc.List)
			}
			out[pkg+"."+fn.Name.Name] = a
		}
		return nil
	})
	return out
}

func fillAnnotation(a *annotation, lines []*ast.Comment) {
	fields := map[string]*string{
		"TestPurpose:":  &a.Purpose,
		"Scope:":        &a.Scope,
		"Security:":     &a.Security,
		"Expected:":     &a.Expected,
		"Test Case ID:": &a.TestCaseID,
	}
	for _, line := range lines {
		text := strings.TrimSpace(strings.TrimPrefix(line.Text, "//"))
		for prefix, dst := range fields {
			if strings.HasPrefix(text, prefix) {
				*dst = strings.TrimSpace(strings.TrimPrefix(text, prefix))
			}
		}
	}
}

func packagePath(filePath string) string {
	dir := strings.TrimPrefix(filepath.Dir(filePath), "./")
	if dir == "." {
		return "main"
	}
	return modulePath + "/" + dir
}

func categoryFor(pkg, testName string) string {
	rel := strings.TrimPrefix(pkg, modulePath+"/")
	switch {
	case strings.HasPrefix(rel, "tests/system"):
		return "System"
	case strings.HasPrefix(rel, "tests/e2e"):
		return "E2E"
	case strings.Contains(rel, "rbac"):
		return "RBAC"
	case strings.Contains(rel, "session"):
		return "Session"
	case strings.Contains(rel, "tenancy"):
		return "Tenancy"
	case strings.Contains(rel, "tenant"):
		return "Tenant"
	case strings.Contains(rel, "upstream"):
		return "Upstream"
	case strings.Contains(rel, "audit"):
		return "Audit"
	case strings.Contains(rel, "transport/http"):
		if strings.Contains(testName, "Auth") || strings.Contains(testName, "Login") || strings.Contains(testName, "Logout") {
			return "Auth API"
		}
		if strings.Contains(testName, "Tenant") || strings.Contains(testName, "Onboarding") {
			return "Tenant API"
		}
		return "API"
	}
	return "Other"
}

// merge replays the test event stream over the annotation map. Tests known
// from the scan but absent from the stream report as "not run"; subtests
// inherit their parent's annotation.
func merge(path string, annotations map[string]annotation) report {
	states := make(map[string]*result, len(annotations))
	for key, a := range annotations {
		states[key] = &result{Name: a.Name, Package: a.Package, Status: "not run", Annotations: a}
	}

	file, err := os.Open(path)
	if err != nil {
		fmt.Printf("report_gen: opening test output: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var ev testEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil || ev.Test == "" {
			continue
		}

		key := ev.Package + "." + ev.Test
		res, ok := states[key]
		if !ok {
			res = newUnknownResult(ev, annotations)
			states[key] = res
		}

		switch ev.Action {
		case "pass", "fail":
			res.Status = ev.Action
			res.Elapsed = ev.Elapsed
		case "skip":
			res.Status = "skip"
		case "output":
			if res.Status == "fail" || res.Status == "" {
				res.Failure += ev.Output
			}
		}
	}

	rep := report{GeneratedAt: time.Now()}
	for _, r := range states {
		rep.Results = append(rep.Results, *r)
		rep.Total++
		switch r.Status {
		case "pass":
			rep.Passed++
		case "fail":
			rep.Failed++
		case "skip":
			rep.Skipped++
		}
	}
	return rep
}

func newUnknownResult(ev testEvent, annotations map[string]annotation) *result {
	a := annotation{Name: ev.Test, Package: ev.Package, Category: "Other"}
	if parent, _, isSub := strings.Cut(ev.Test, "/"); isSub {
		if pa, found := annotations[ev.Package+"."+parent]; found {
			a = pa
			a.Name = ev.Test
			a.Purpose = pa.Purpose + " (Subtest: " + ev.Test + ")"
		}
	}
	return &result{Name: ev.Test, Package: ev.Package, Annotations: a}
}

func writeJSON(rep report, path string) {
	data, _ := json.MarshalIndent(rep, "", "  ")
	os.MkdirAll(filepath.Dir(path), 0755)
	os.WriteFile(path, data, 0644)
}

func writeMarkdown(rep report, path, title string) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Classdeck %s\n\n", title)
	fmt.Fprintf(&sb, "**Generated:** %s  \n", rep.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	status := "PASSED"
	if rep.Failed > 0 {
		status = "FAILED"
	}
	fmt.Fprintf(&sb, "**Status:** %s\n\n", status)

	rate := 0.0
	if rep.Total > 0 {
		rate = float64(rep.Passed) / float64(rep.Total) * 100
	}
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Total | Passed | Failed | Skipped | Pass Rate |\n")
	sb.WriteString("|-------|--------|--------|---------|-----------|\n")
	fmt.Fprintf(&sb, "| %d | %d | %d | %d | %.1f%% |\n\n", rep.Total, rep.Passed, rep.Failed, rep.Skipped, rate)

	byCategory := make(map[string][]result)
	for _, r := range rep.Results {
		byCategory[r.Annotations.Category] = append(byCategory[r.Annotations.Category], r)
	}

	sb.WriteString("## Test Results by Category\n\n")
	for _, cat := range categoryOrder {
		tests := byCategory[cat]
		if len(tests) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "### %s\n\n", cat)
		sb.WriteString("| ID | Test Name | Status | Purpose | Security |\n")
		sb.WriteString("|----|-----------|--------|---------|----------|\n")
		for _, t := range tests {
			security := t.Annotations.Security
			if security != "" {
				security = "**" + security + "**"
			}
			fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
				t.Annotations.TestCaseID, t.Name, statusMark(t.Status), t.Annotations.Purpose, security)
		}
		sb.WriteString("\n")
	}

	if rep.Failed > 0 {
		sb.WriteString("## Failure Details\n\n")
		for _, t := range rep.Results {
			if t.Status == "fail" {
				fmt.Fprintf(&sb, "### %s (%s)\n```\n%s\n```\n\n", t.Name, t.Package, t.Failure)
			}
		}
	}

	sb.WriteString("---\n*Report generated by Classdeck Test Infrastructure*\n")

	os.MkdirAll(filepath.Dir(path), 0755)
	os.WriteFile(path, []byte(sb.String()), 0644)
}

func statusMark(status string) string {
	switch status {
	case "fail":
		return "FAIL"
	case "skip":
		return "SKIP"
	case "not run":
		return "NOT RUN"
	default:
		return "PASS"
	}
}
