package ingest

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

const (
	titleMaxWords      = 12
	DefaultFilenameLen = 80
)

var genericTokens = map[string]bool{
	"document":     true,
	"documents":    true,
	"untitled":     true,
	"unnamed":      true,
	"scan":         true,
	"scanned":      true,
	"image":        true,
	"img":          true,
	"photo":        true,
	"picture":      true,
	"pic":          true,
	"file":         true,
	"new":          true,
	"copy":         true,
	"data":         true,
	"export":       true,
	"download":     true,
	"attachment":   true,
	"temp":         true,
	"tmp":          true,
	"output":       true,
	"sheet":        true,
	"sheet1":       true,
	"book":         true,
	"book1":        true,
	"slide":        true,
	"presentation": true,
	"note":         true,
	"notes":        true,
	"text":         true,
	"sample":       true,
	"draft":        true,
	"screenshot":   true,
	"capture":      true,
	"page":         true,
}

var (
	genericPatternRegex = regexp.MustCompile(`^(untitled|document|doc|scan|img|image|dsc|dscn|photo|pic|screenshot|capture|copy|new|temp|tmp|sample|test|page|sheet|book|slide|export|download|attachment|draft|file)([ _-]*\d+)*$`)
	pureDigitsRegex     = regexp.MustCompile(`^\d+$`)
	uuidLikeRegex       = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	longHexRegex        = regexp.MustCompile(`^[0-9a-f]{8,}$`)
	pageMarkerRegex     = regexp.MustCompile(`^[\s\-=_~*#]*page[\s.]*\d+(\s*(of|/)\s*\d+)?[\s\-=_~*#]*$`)
	illegalFileChars    = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	whitespaceRuns      = regexp.MustCompile(`\s+`)
)

// IsGenericName reports whether a filename carries no semantic information
// and is therefore a candidate for content-derived renaming. Meaningful names
// must never be altered.
func IsGenericName(filename string) bool {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	base = timestampPrefixRegex.ReplaceAllString(base, "")
	base = strings.ToLower(strings.Trim(base, " ._-"))
	if base == "" {
		return true
	}
	if len([]rune(base)) <= 2 {
		return true
	}
	if genericTokens[base] {
		return true
	}
	if pureDigitsRegex.MatchString(base) {
		return true
	}
	if uuidLikeRegex.MatchString(base) || longHexRegex.MatchString(base) {
		return true
	}
	return genericPatternRegex.MatchString(base)
}

// ExtractTitle derives a human title from extracted content. Preference
// order: embedded document-property title, first meaningful line of the text,
// then a type-specific fallback. Returns "" when nothing usable exists.
func ExtractTitle(text string, meta map[string]string, fileType string) string {
	if title := strings.TrimSpace(meta["title"]); title != "" && !IsGenericName(title) {
		return capWords(title, titleMaxWords)
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !meaningfulLine(line) {
			continue
		}
		return capWords(whitespaceRuns.ReplaceAllString(line, " "), titleMaxWords)
	}
	switch fileType {
	case ".csv", ".tsv":
		if header := strings.TrimSpace(meta["header"]); header != "" {
			return capWords(header, titleMaxWords)
		}
	}
	return ""
}

// SafeFilename turns a title into a filesystem-safe base name: strip illegal
// characters, collapse whitespace to underscores, truncate on a rune
// boundary, never return empty.
func SafeFilename(title string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultFilenameLen
	}
	name := illegalFileChars.ReplaceAllString(title, "")
	name = whitespaceRuns.ReplaceAllString(strings.TrimSpace(name), "_")
	name = strings.Trim(name, " ._-")
	runes := []rune(name)
	if len(runes) > maxLen {
		name = strings.Trim(string(runes[:maxLen]), " ._-")
	}
	if name == "" {
		return "untitled"
	}
	return name
}

func meaningfulLine(line string) bool {
	if line == "" {
		return false
	}
	if pageMarkerRegex.MatchString(strings.ToLower(line)) {
		return false
	}
	words := strings.Fields(line)
	if len(words) < 2 {
		return false
	}
	hasLetter := false
	for _, r := range line {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	return hasLetter
}

func capWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
