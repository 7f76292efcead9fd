package classification

import "testing"

func TestExtractByDelimiter(t *testing.T) {
	title := "Part1 | Part2 | Part3"
	if got, ok := ExtractByDelimiter(title, " | ", 0); !ok || got != "Part1" {
		t.Errorf("position 0 = (%q, %v), want (Part1, true)", got, ok)
	}
	if got, ok := ExtractByDelimiter(title, " | ", 2); !ok || got != "Part3" {
		t.Errorf("position 2 = (%q, %v), want (Part3, true)", got, ok)
	}
	if _, ok := ExtractByDelimiter(title, " | ", 99); ok {
		t.Error("out-of-range position should return false")
	}
	if _, ok := ExtractByDelimiter(" | ", " | ", 0); ok {
		t.Error("empty part after trim should return false")
	}
}

func TestExtractWithFilter(t *testing.T) {
	title := "#channel | Workspace"
	got, ok := ExtractWithFilter(title, " | ", 0, func(s string) bool { return len(s) > 0 && s[0] == '#' })
	if !ok || got != "#channel" {
		t.Errorf("got (%q, %v), want (#channel, true)", got, ok)
	}

	if _, ok := ExtractWithFilter("channel | Workspace", " | ", 0, func(s string) bool { return s[0] == '#' }); ok {
		t.Error("filter should reject a part not starting with #")
	}
}

func TestExtractFilename(t *testing.T) {
	cases := map[string]string{
		"main.rs — Project":         "main.rs",
		"main.rs - VSCode":          "main.rs",
		"/path/to/file.rs":          "file.rs",
		"C:\\path\\to\\file.rs":     "file.rs",
	}
	for in, want := range cases {
		if got := ExtractFilename(in); got != want {
			t.Errorf("ExtractFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncateTitle(t *testing.T) {
	short := "Short Title"
	if got := TruncateTitle(short); got != short {
		t.Errorf("TruncateTitle(short) = %q, want unchanged", got)
	}

	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	got := TruncateTitle(string(long))
	if len(got) > maxTitleLength {
		t.Errorf("TruncateTitle(long) length = %d, want <= %d", len(got), maxTitleLength)
	}
	if got[len(got)-3:] != titleTruncateSuffix {
		t.Errorf("TruncateTitle(long) = %q, want suffix %q", got, titleTruncateSuffix)
	}

	exact := make([]byte, maxTitleLength)
	for i := range exact {
		exact[i] = 'a'
	}
	if got := TruncateTitle(string(exact)); got != string(exact) {
		t.Error("title at exactly the max length should not be truncated")
	}
}

func TestExtractProjectContext(t *testing.T) {
	if got, ok := ExtractProjectContext("main.rs - Pulsarc [~/path]"); !ok || got != "Pulsarc" {
		t.Errorf("got (%q, %v), want (Pulsarc, true)", got, ok)
	}
	if got, ok := ExtractProjectContext("main.rs - my-project"); !ok || got != "my-project" {
		t.Errorf("got (%q, %v), want (my-project, true)", got, ok)
	}
	if _, ok := ExtractProjectContext("just a file"); ok {
		t.Error("no dash-separated segment should return false")
	}

	long := "file.rs - "
	for i := 0; i < 50; i++ {
		long += "a"
	}
	if _, ok := ExtractProjectContext(long); ok {
		t.Error("project name at/over the length limit should return false")
	}
}

func TestCleanBrowserTitle(t *testing.T) {
	if got := CleanBrowserTitle("GitHub - Google Chrome"); got != "GitHub" {
		t.Errorf("got %q, want GitHub", got)
	}
	if got := CleanBrowserTitle("Stack Overflow - Mozilla Firefox"); got != "Stack Overflow" {
		t.Errorf("got %q, want \"Stack Overflow\"", got)
	}
	if got := CleanBrowserTitle("Plain Title"); got != "Plain Title" {
		t.Errorf("got %q, want unchanged", got)
	}
}

func TestNormalizeNamePreservesAcronyms(t *testing.T) {
	if got := NormalizeName("api q4 planning"); got != "Api Q4 Planning" {
		t.Errorf("got %q, want \"Api Q4 Planning\"", got)
	}
	if got := NormalizeName("API Q4"); got != "API Q4" {
		t.Errorf("got %q, want unchanged \"API Q4\"", got)
	}
	if got := NormalizeName("ClientX"); got != "ClientX" {
		t.Errorf("got %q, want unchanged \"ClientX\"", got)
	}
}
