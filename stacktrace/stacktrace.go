package stacktrace

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Provider - Captures the current call stack as formatted lines. Injected so
// tests and platform-specific hosts can substitute their own implementation.
type Provider interface {
	Capture(maxLines int) []string
}

// Package path of this module, used to drop our own instrumentation frames
const ownModulePath = "github.com/akhmadkhasan68/efcore-query-analyzer"

// Namespaces that obscure the real call site rather than revealing it
var infrastructurePrefixes = []string{
	"runtime.",
	"reflect.",
	"testing.",
	"database/sql",
	"net/http",
	"github.com/lib/pq",
}

// RuntimeProvider - Default Provider built on runtime.Callers. Keeps only
// frames judged to be application code: the primary heuristic is source file
// containment within the project root, the fallback is a package path token
// match against the root directory's name.
type RuntimeProvider struct {
	projectRoot string
	rootToken   string
}

func NewRuntimeProvider(projectRoot string) *RuntimeProvider {
	if projectRoot == "" {
		projectRoot, _ = os.Getwd()
	}
	return &RuntimeProvider{
		projectRoot: projectRoot,
		rootToken:   filepath.Base(projectRoot),
	}
}

func (p *RuntimeProvider) Capture(maxLines int) []string {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(2, pcs)
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	var collected []runtime.Frame
	for {
		frame, more := frames.Next()
		collected = append(collected, frame)
		if !more {
			break
		}
	}

	return p.filterFrames(collected, maxLines)
}

// filterFrames - Innermost frame first, capped at maxLines, de-duplicated.
// Returns an empty result when no application frames survive.
func (p *RuntimeProvider) filterFrames(frames []runtime.Frame, maxLines int) []string {
	var lines []string
	seen := make(map[string]bool)

	for _, frame := range frames {
		if !p.keepFrame(frame) {
			continue
		}

		line := p.formatFrame(frame)
		if seen[line] {
			continue
		}
		seen[line] = true

		lines = append(lines, line)
		if maxLines > 0 && len(lines) >= maxLines {
			break
		}
	}

	return lines
}

func (p *RuntimeProvider) keepFrame(frame runtime.Frame) bool {
	function := frame.Function
	if function == "" {
		return false
	}

	if strings.HasPrefix(function, ownModulePath) {
		return false
	}

	for _, prefix := range infrastructurePrefixes {
		if strings.HasPrefix(function, prefix) {
			return false
		}
	}

	if isCompilerGenerated(function) {
		return false
	}

	if p.projectRoot != "" && strings.HasPrefix(frame.File, p.projectRoot+string(filepath.Separator)) {
		return true
	}

	// Fallback heuristic for code built outside the working directory
	// (e.g. module cache paths)
	if p.rootToken != "" && strings.Contains(function, p.rootToken) {
		return true
	}

	return false
}

// isCompilerGenerated - Anonymous closures ("funcN" suffixes), method value
// wrappers ("-fm") and other synthetic frames hide the real call site.
func isCompilerGenerated(function string) bool {
	if strings.HasSuffix(function, "-fm") {
		return true
	}

	base := function
	if idx := strings.LastIndex(base, "/"); idx != -1 {
		base = base[idx+1:]
	}
	for _, part := range strings.Split(base, ".") {
		if len(part) > 4 && part[:4] == "func" {
			rest := part[4:]
			if strings.Trim(rest, "0123456789") == "" {
				return true
			}
		}
	}

	return false
}

func (p *RuntimeProvider) formatFrame(frame runtime.Frame) string {
	file := frame.File
	if p.projectRoot != "" {
		if rel, err := filepath.Rel(p.projectRoot, file); err == nil && !strings.HasPrefix(rel, "..") {
			file = rel
		}
	}
	return fmt.Sprintf("%s (%s:%d)", frame.Function, file, frame.Line)
}
