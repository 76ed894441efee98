// Package router splits a tagged command into the engine that runs it and
// the untagged body.
package router

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Lang identifies a sub-language and the engine that executes it.
type Lang string

// Languages.
const (
	Python Lang = "py"
	DuckDB Lang = "dk"
	Polars Lang = "pl"
	Q      Lang = "q"
)

// Tags.
const (
	TagPython = "py>"
	TagREPL   = ">>>"
	TagDuckDB = "dk>"
	TagPolars = "pl>"
	TagQ      = "q)"
)

// scriptingPrefixes are qualified names that always route to the
// scripting engine.
var scriptingPrefixes = []string{"qdb.", "pdb.", "pythondb."}

// ErrInvalidLanguage is returned for an unknown language name.
var ErrInvalidLanguage = errors.New("invalid language")

// UnrecognizedCommandError reports a command whose tag names no engine.
type UnrecognizedCommandError struct {
	Command string
}

func (e *UnrecognizedCommandError) Error() string {
	return fmt.Sprintf("unrecognized command: %s", e.Command)
}

// Routing is the outcome of routing a command.
type Routing struct {
	Lang Lang
	Body string
	// Empty is set for blank input, which runs nothing.
	Empty bool
}

// Tag returns the canonical tag for l.
func (l Lang) Tag() string {
	switch l {
	case Python:
		return TagREPL
	case Q:
		return TagQ
	default:
		return string(l) + ">"
	}
}

// Prompt returns the console prompt for l.
func (l Lang) Prompt() string {
	return l.Tag()
}

// Title returns the display name of l.
func (l Lang) Title() string {
	names := map[Lang]string{Python: "python", DuckDB: "duckdb", Polars: "polars", Q: "q"}
	return cases.Title(language.English).String(names[l])
}

// Valid reports whether l is a known language.
func (l Lang) Valid() bool {
	switch l {
	case Python, DuckDB, Polars, Q:
		return true
	}
	return false
}

// ParseLang maps a case-insensitive language name onto a Lang.
func ParseLang(name string) (Lang, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "PY", "PYTHON", "STARLARK":
		return Python, nil
	case "DK", "DUCKDB":
		return DuckDB, nil
	case "PL", "POLARS", "FRAME":
		return Polars, nil
	case "Q", "KDB":
		return Q, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLanguage, name)
}

// tagLang matches the tag at the start of s.
func tagLang(s string) (Lang, int, bool) {
	switch {
	case strings.HasPrefix(s, TagREPL):
		return Python, len(TagREPL), true
	case strings.HasPrefix(s, TagPython):
		return Python, len(TagPython), true
	case strings.HasPrefix(s, TagDuckDB):
		return DuckDB, len(TagDuckDB), true
	case strings.HasPrefix(s, TagPolars):
		return Polars, len(TagPolars), true
	case strings.HasPrefix(s, TagQ):
		return Q, len(TagQ), true
	}
	return "", 0, false
}

// Qualify prepends the tag the command will run under, following the
// routing rules, without stripping anything.
func Qualify(command string, current Lang) string {
	s := strings.TrimSpace(command)
	for _, p := range scriptingPrefixes {
		if strings.HasPrefix(s, p) {
			return TagREPL + s
		}
	}
	if current == Q {
		return TagQ + s
	}
	if len(s) < 3 || (s[2] != '>' && !strings.HasPrefix(s, TagQ)) {
		return current.Tag() + s
	}
	return s
}

// Route resolves the engine for command given the session's current
// language. Repeated tags of the same engine collapse, so "dk>dk>X" routes
// like "dk>X".
func Route(command string, current Lang) (Routing, error) {
	if strings.TrimSpace(command) == "" {
		return Routing{Empty: true}, nil
	}

	s := Qualify(command, current)
	lang, n, ok := tagLang(s)
	if !ok {
		return Routing{}, &UnrecognizedCommandError{Command: command}
	}
	body := s[n:]
	for {
		next, m, ok := tagLang(body)
		if !ok || next != lang {
			break
		}
		body = body[m:]
	}
	return Routing{Lang: lang, Body: body}, nil
}
