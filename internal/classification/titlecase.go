package classification

import "strings"

// maxTitleLength and titleTruncateSuffix bound how much of a raw window
// title evidence carries forward for display purposes.
const (
	maxTitleLength       = 100
	titleTruncateSuffix  = "..."
	maxProjectNameLength = 50
)

// browserSuffixes are stripped from browser window titles before they're
// used as evidence, since the browser chrome adds no classification signal.
var browserSuffixes = []string{" - Google Chrome", " - Mozilla Firefox", " - Safari", " - Arc"}

// ExtractByDelimiter splits title on delimiter and returns the trimmed part
// at position, or ("", false) if position is out of range or the part is
// empty after trimming.
func ExtractByDelimiter(title, delimiter string, position int) (string, bool) {
	parts := strings.Split(title, delimiter)
	if position < 0 || position >= len(parts) {
		return "", false
	}
	part := strings.TrimSpace(parts[position])
	if part == "" {
		return "", false
	}
	return part, true
}

// ExtractWithFilter is ExtractByDelimiter additionally validated by filter.
func ExtractWithFilter(title, delimiter string, position int, filter func(string) bool) (string, bool) {
	part, ok := ExtractByDelimiter(title, delimiter, position)
	if !ok || !filter(part) {
		return "", false
	}
	return part, true
}

// ExtractFilename pulls just the filename out of editor window titles,
// trying em dash and regular dash separators before falling back to Unix
// and Windows path separators.
func ExtractFilename(title string) string {
	if strings.Contains(title, " — ") {
		return strings.Split(title, " — ")[0]
	}
	if strings.Contains(title, " - ") {
		return strings.Split(title, " - ")[0]
	}
	if strings.Contains(title, "/") {
		parts := strings.Split(title, "/")
		return parts[len(parts)-1]
	}
	if strings.Contains(title, "\\") {
		parts := strings.Split(title, "\\")
		return parts[len(parts)-1]
	}
	return title
}

// TruncateTitle shortens title to maxTitleLength, appending
// titleTruncateSuffix when it was cut.
func TruncateTitle(title string) string {
	if len(title) <= maxTitleLength {
		return title
	}
	return title[:maxTitleLength-len(titleTruncateSuffix)] + titleTruncateSuffix
}

// ExtractProjectContext pulls a project name out of an IDE window title,
// e.g. "main.rs - MyProject [~/path]" -> "MyProject". Returns false when no
// dash-separated project segment is found or it exceeds the length limit.
func ExtractProjectContext(title string) (string, bool) {
	if pos := strings.LastIndex(title, " — "); pos >= 0 {
		afterDash := title[pos+len(" — "):]
		project := strings.Split(afterDash, " [")[0]
		if project != "" && len(project) < maxProjectNameLength {
			return project, true
		}
	}
	if pos := strings.LastIndex(title, " - "); pos >= 0 {
		afterDash := title[pos+len(" - "):]
		project := strings.Split(afterDash, " [")[0]
		if project != "" && len(project) < maxProjectNameLength {
			return project, true
		}
	}
	return "", false
}

// CleanBrowserTitle strips known browser-chrome suffixes, then truncates.
func CleanBrowserTitle(title string) string {
	for _, suffix := range browserSuffixes {
		if clean, ok := ExtractByDelimiter(title, suffix, 0); ok {
			return TruncateTitle(clean)
		}
	}
	return TruncateTitle(title)
}

// NormalizeName title-cases a project/workstream name while preserving
// acronyms: an all-caps word (API) or a mixed-case word (ClientX) is left
// untouched; anything else is capitalized on its first letter only.
func NormalizeName(input string) string {
	words := strings.Fields(input)
	out := make([]string, 0, len(words))
	for _, word := range words {
		out = append(out, normalizeWord(word))
	}
	return strings.Join(out, " ")
}

func normalizeWord(word string) string {
	hasUpper, hasLower, allCapsOrNonAlpha := false, false, true
	for _, r := range word {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
			allCapsOrNonAlpha = false
		default:
			if isLetter(r) {
				allCapsOrNonAlpha = false
			}
		}
	}

	if (hasUpper && hasLower) || allCapsOrNonAlpha {
		return word
	}

	runes := []rune(word)
	if len(runes) == 0 {
		return ""
	}
	return strings.ToUpper(string(runes[0])) + strings.ToLower(string(runes[1:]))
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
