// Package resolve turns user symbol references into concrete locations.
//
// A reference is one of:
//
//	NAME                 bare, possibly dotted (Foo.bar)
//	PATHGLOB:NAME
//	PATHGLOB:LINE:NAME
//	receiver:method      colon-method form (Lua style)
//
// Names produced by language servers are often decorated (Go "(*T).M",
// Rust "impl T for S" containers, Lua "T:m", parameter lists); all
// language-specific knowledge lives in the normalization rules here, so the
// indexer stays uniform and new decorations are handled by adding a rule.
package resolve

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/dshills/lantern/internal/index"
)

// Match is a uniquely resolved symbol.
type Match struct {
	Path           string `json:"path"`
	Line           int    `json:"line"`
	Column         int    `json:"column"`
	Name           string `json:"name"`
	Kind           string `json:"kind"`
	Container      string `json:"container,omitempty"`
	RangeStartLine int    `json:"range_start_line,omitempty"`
	RangeEndLine   int    `json:"range_end_line,omitempty"`
}

// Ambiguity reports multiple candidates, each annotated with the shortest
// reference that would resolve to it uniquely.
type Ambiguity struct {
	Matches []index.Symbol `json:"matches"`
	Total   int            `json:"total_matches"`
}

// maxAmbiguousMatches bounds the candidates reported to the user.
const maxAmbiguousMatches = 10

var (
	identRe      = regexp.MustCompile(`^\w+$`)
	funcParenRe  = regexp.MustCompile(`^(\w+)\([^)]*\)$`)
	goMethodRe   = regexp.MustCompile(`^\(\*?\w+\)\.(\w+)$`)
	goRecvRe     = regexp.MustCompile(`^\(\*?(\w+)\)$`)
	goRecvNameRe = regexp.MustCompile(`^\(\*?(\w+)\)\.`)
	implForRe    = regexp.MustCompile(`^impl\s+\w+(?:<[^>]+>)?\s+for\s+(\w+)`)
	implRe       = regexp.MustCompile(`^impl\s+(\w+)`)
	genericsRe   = regexp.MustCompile(`^(\w+)(?:\[[^\]]*\]|<[^>]*>)$`)
)

// Resolve matches ref against the symbol set. Exactly one of the returns is
// non-zero: a unique Match, an Ambiguity, or an error (parse failure or not
// found). workspaceRoot is used to absolutize the matched path.
func Resolve(symbols []index.Symbol, ref, workspaceRoot string) (*Match, *Ambiguity, error) {
	// The colon-method form short-circuits the path:line:name grammar:
	// exactly one colon between two plain identifiers matched verbatim
	// against the flat names.
	if recv, method, ok := splitColonMethod(ref); ok {
		verbatim := make([]index.Symbol, 0, 1)
		for _, s := range symbols {
			if s.Name == recv+":"+method {
				verbatim = append(verbatim, s)
			}
		}
		if len(verbatim) == 1 {
			return toMatch(&verbatim[0], workspaceRoot), nil, nil
		}
	}

	pathFilter, lineFilter, name, err := parseReference(ref)
	if err != nil {
		return nil, nil, err
	}

	candidates := symbols
	if pathFilter != "" {
		kept := candidates[:0:0]
		for _, s := range candidates {
			if matchesPath(s.Path, pathFilter) {
				kept = append(kept, s)
			}
		}
		candidates = kept
	}
	if lineFilter > 0 {
		kept := candidates[:0:0]
		for _, s := range candidates {
			if s.Line == lineFilter {
				kept = append(kept, s)
			}
		}
		candidates = kept
	}

	matches := matchName(candidates, name)

	if len(matches) == 0 {
		var parts []string
		if pathFilter != "" {
			parts = append(parts, fmt.Sprintf("in files matching '%s'", pathFilter))
		}
		if lineFilter > 0 {
			parts = append(parts, fmt.Sprintf("on line %d", lineFilter))
		}
		suffix := ""
		if len(parts) > 0 {
			suffix = " " + strings.Join(parts, " ")
		}
		return nil, nil, fmt.Errorf("Symbol '%s' not found%s", name, suffix)
	}

	matches = preferTypeKind(matches)

	if len(matches) == 1 {
		return toMatch(&matches[0], workspaceRoot), nil, nil
	}

	parts := strings.Split(name, ".")
	target := parts[len(parts)-1]

	shown := matches
	if len(shown) > maxAmbiguousMatches {
		shown = shown[:maxAmbiguousMatches]
	}
	annotated := make([]index.Symbol, len(shown))
	for i := range shown {
		annotated[i] = shown[i]
		annotated[i].Ref = unambiguousRef(&shown[i], matches, target)
	}
	return nil, &Ambiguity{Matches: annotated, Total: len(matches)}, nil
}

// splitColonMethod recognizes the receiver:method form: one colon, both
// sides plain identifiers, neither containing a dot.
func splitColonMethod(ref string) (recv, method string, ok bool) {
	if strings.Count(ref, ":") != 1 {
		return "", "", false
	}
	recv, method, _ = strings.Cut(ref, ":")
	if !identRe.MatchString(recv) || !identRe.MatchString(method) {
		return "", "", false
	}
	return recv, method, true
}

// parseReference splits PATHGLOB / LINE / NAME on colons. Zero, one, or two
// colons are allowed.
func parseReference(ref string) (pathFilter string, lineFilter int, name string, err error) {
	switch strings.Count(ref, ":") {
	case 0:
		return "", 0, ref, nil
	case 1:
		path, rest, _ := strings.Cut(ref, ":")
		return path, 0, rest, nil
	case 2:
		path, rest, _ := strings.Cut(ref, ":")
		lineStr, rest, _ := strings.Cut(rest, ":")
		line, convErr := strconv.Atoi(lineStr)
		if convErr != nil || line <= 0 {
			return "", 0, "", fmt.Errorf("Invalid line number: '%s'", lineStr)
		}
		return path, line, rest, nil
	default:
		return "", 0, "", fmt.Errorf("invalid symbol reference '%s': too many colons", ref)
	}
}

// matchName filters symbols against a possibly-dotted name.
func matchName(symbols []index.Symbol, name string) []index.Symbol {
	parts := strings.Split(name, ".")
	target := parts[len(parts)-1]

	var out []index.Symbol

	if len(parts) == 1 {
		for _, s := range symbols {
			if nameMatches(s.Name, target) || strings.HasSuffix(s.Name, ")."+target) {
				out = append(out, s)
			}
		}
		return out
	}

	containerStr := strings.Join(parts[:len(parts)-1], ".")

	for _, s := range symbols {
		if s.Name == "(*"+containerStr+")."+target || s.Name == "("+containerStr+")."+target {
			out = append(out, s)
			continue
		}
		if s.Name == name {
			out = append(out, s)
			continue
		}
		if s.Name == containerStr+":"+target {
			out = append(out, s)
			continue
		}
		if !nameMatches(s.Name, target) {
			continue
		}

		normalized := normalizeContainer(s.Container)
		module := moduleName(s.Path)
		full := module
		if normalized != "" {
			full = module + "." + normalized
		}

		switch {
		case normalized == containerStr,
			s.Container == containerStr,
			full == containerStr,
			strings.HasSuffix(full, "."+containerStr),
			len(parts) == 2 && parts[0] == module:
			out = append(out, s)
		}
	}
	return out
}

func nameMatches(symName, target string) bool {
	return symName == target || normalizeName(symName) == target
}

// normalizeName strips language decorations from a raw symbol name:
// parameter lists, Go receiver prefixes, and colon-method receivers.
func normalizeName(name string) string {
	if m := funcParenRe.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	if m := goMethodRe.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	if i := strings.LastIndex(name, ":"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// normalizeContainer reduces decorated containers to the plain type name:
// Go "(*X)" wrappers, Rust "impl X [for Y]" blocks, and generic suffixes.
func normalizeContainer(container string) string {
	if m := goRecvRe.FindStringSubmatch(container); m != nil {
		return m[1]
	}
	if m := implForRe.FindStringSubmatch(container); m != nil {
		return m[1]
	}
	if m := implRe.FindStringSubmatch(container); m != nil {
		return m[1]
	}
	if m := genericsRe.FindStringSubmatch(container); m != nil {
		return m[1]
	}
	return container
}

// effectiveContainer is the container to show in generated references: the
// normalized container when present, else a receiver extracted from the
// decorated name.
func effectiveContainer(s *index.Symbol) string {
	if s.Container != "" {
		return normalizeContainer(s.Container)
	}
	if m := goRecvNameRe.FindStringSubmatch(s.Name); m != nil {
		return m[1]
	}
	return ""
}

func moduleName(relPath string) string {
	base := filepath.Base(relPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// typeLikeKinds are preferred when a name is shared between a type and its
// members.
var typeLikeKinds = map[string]bool{
	"Class": true, "Struct": true, "Interface": true,
	"Enum": true, "Module": true, "Namespace": true, "Package": true,
}

func preferTypeKind(matches []index.Symbol) []index.Symbol {
	if len(matches) <= 1 {
		return matches
	}
	var typed []index.Symbol
	for _, m := range matches {
		if typeLikeKinds[m.Kind] {
			typed = append(typed, m)
		}
	}
	if len(typed) == 1 {
		return typed
	}
	return matches
}

func toMatch(s *index.Symbol, workspaceRoot string) *Match {
	return &Match{
		Path:           filepath.Join(workspaceRoot, s.Path),
		Line:           s.Line,
		Column:         s.Column,
		Name:           s.Name,
		Kind:           s.Kind,
		Container:      s.Container,
		RangeStartLine: s.RangeStartLine,
		RangeEndLine:   s.RangeEndLine,
	}
}

// unambiguousRef generates the shortest prefix form that, re-fed to the
// matcher against the same candidate set, resolves back to exactly sym.
func unambiguousRef(sym *index.Symbol, all []index.Symbol, target string) string {
	filename := filepath.Base(sym.Path)
	container := effectiveContainer(sym)
	name := normalizeName(target)

	if container != "" {
		if ref := container + "." + name; refResolvesUniquely(ref, sym, all) {
			return ref
		}
	}
	if ref := filename + ":" + name; refResolvesUniquely(ref, sym, all) {
		return ref
	}
	if container != "" {
		if ref := filename + ":" + container + "." + name; refResolvesUniquely(ref, sym, all) {
			return ref
		}
	}
	return fmt.Sprintf("%s:%d:%s", filename, sym.Line, name)
}

// refResolvesUniquely replays a generated reference against the candidate
// set and checks it selects exactly the intended symbol.
func refResolvesUniquely(ref string, target *index.Symbol, all []index.Symbol) bool {
	var filenameFilter string
	symbolPath := ref

	switch strings.Count(ref, ":") {
	case 1:
		filenameFilter, symbolPath, _ = strings.Cut(ref, ":")
	case 2:
		var lineStr string
		filenameFilter, symbolPath, _ = strings.Cut(ref, ":")
		lineStr, symbolPath, _ = strings.Cut(symbolPath, ":")
		line, err := strconv.Atoi(lineStr)
		if err != nil {
			return false
		}
		var matching []*index.Symbol
		for i := range all {
			if filepath.Base(all[i].Path) == filenameFilter && all[i].Line == line {
				matching = append(matching, &all[i])
			}
		}
		return len(matching) == 1 && sameSymbol(matching[0], target)
	}

	candidates := make([]*index.Symbol, 0, len(all))
	for i := range all {
		if filenameFilter != "" && filepath.Base(all[i].Path) != filenameFilter {
			continue
		}
		candidates = append(candidates, &all[i])
	}

	parts := strings.Split(symbolPath, ".")
	name := parts[len(parts)-1]

	var matching []*index.Symbol
	if len(parts) == 1 {
		for _, s := range candidates {
			if normalizeName(s.Name) == name {
				matching = append(matching, s)
			}
		}
	} else {
		containerStr := strings.Join(parts[:len(parts)-1], ".")
		for _, s := range candidates {
			if normalizeName(s.Name) != name {
				continue
			}
			normalized := normalizeContainer(s.Container)
			module := moduleName(s.Path)
			full := module
			if normalized != "" {
				full = module + "." + normalized
			}
			switch {
			case normalized == containerStr,
				s.Container == containerStr,
				effectiveContainer(s) == containerStr,
				full == containerStr,
				strings.HasSuffix(full, "."+containerStr),
				len(parts) == 2 && parts[0] == module:
				matching = append(matching, s)
			}
		}
	}

	return len(matching) == 1 && sameSymbol(matching[0], target)
}

// sameSymbol compares by identity fields rather than pointer, since the
// candidate set is copied during annotation.
func sameSymbol(a, b *index.Symbol) bool {
	return a.Path == b.Path && a.Line == b.Line && a.Column == b.Column && a.Name == b.Name
}
