package classification

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pulsearc/agent-core/internal/domain"
	"github.com/pulsearc/agent-core/internal/storage"
	"github.com/pulsearc/agent-core/internal/storage/blocking"
)

func openTestStorage(t *testing.T) (*storage.SnapshotRepository, *storage.CalendarEventRepository) {
	t.Helper()
	dir := t.TempDir()
	cfg := storage.DefaultPoolConfig(filepath.Join(dir, "pulsearc.db"), "test-key-32-bytes-long-for-aes")
	cfg.MaxOpenConns = 1

	pool, err := storage.Open(cfg)
	if err != nil {
		t.Fatalf("Open() err = %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	if err := pool.Migrate(storage.MigrationsFS); err != nil {
		t.Fatalf("Migrate() err = %v", err)
	}

	jobs := blocking.NewPool(2)
	return storage.NewSnapshotRepository(pool, jobs), storage.NewCalendarEventRepository(pool, jobs)
}

func mustInsertSnapshot(t *testing.T, repo *storage.SnapshotRepository, s domain.ActivitySnapshot) {
	t.Helper()
	if err := repo.Insert(context.Background(), s); err != nil {
		t.Fatalf("Insert snapshot err = %v", err)
	}
}

func TestExtractEvidenceCollectsAppsKeywordsAndDomains(t *testing.T) {
	snapshots, _ := openTestStorage(t)
	extractor := NewEvidenceExtractor(snapshots)

	base := time.Unix(1_700_000_000, 0).UTC()
	mustInsertSnapshot(t, snapshots, domain.ActivitySnapshot{
		ID:         "snap-1",
		CapturedAt: base,
		Context: domain.ActivityContext{
			AppName:     "Excel",
			WindowTitle: "Project Astro Model.xlsx - Excel 2024",
		},
	})
	mustInsertSnapshot(t, snapshots, domain.ActivitySnapshot{
		ID:         "snap-2",
		CapturedAt: base.Add(time.Minute),
		Context: domain.ActivityContext{
			AppName:  "Chrome",
			URL:      "https://app.datasite.com/room/123",
			FilePath: "/Users/a/deal-room/model.xlsx",
		},
	})

	block := domain.ProposedBlock{
		ID:          "block-1",
		When:        domain.TimeRange{StartTS: base.Unix(), EndTS: base.Add(2 * time.Minute).Unix()},
		SnapshotIDs: []string{"snap-1", "snap-2"},
	}

	evidence, err := extractor.ExtractEvidence(context.Background(), block)
	if err != nil {
		t.Fatalf("ExtractEvidence() err = %v", err)
	}

	wantApps := map[string]bool{"Excel": true, "Chrome": true}
	for _, app := range evidence.Apps {
		delete(wantApps, app)
	}
	if len(wantApps) != 0 {
		t.Errorf("missing apps in evidence: %v", wantApps)
	}

	foundKeyword := false
	for _, kw := range evidence.Keywords {
		if kw == "astro" {
			foundKeyword = true
		}
		if len(kw) <= 3 {
			t.Errorf("keyword %q should have been filtered (len <= 3)", kw)
		}
	}
	if !foundKeyword {
		t.Error("expected \"astro\" keyword extracted from window title")
	}

	if len(evidence.URLDomains) != 1 || evidence.URLDomains[0] != "app.datasite.com" {
		t.Errorf("URLDomains = %v, want [app.datasite.com]", evidence.URLDomains)
	}
	if len(evidence.VDRProviders) != 1 || evidence.VDRProviders[0] != "datasite" {
		t.Errorf("VDRProviders = %v, want [datasite]", evidence.VDRProviders)
	}
	if len(evidence.FilePaths) != 1 {
		t.Errorf("FilePaths = %v, want 1 entry", evidence.FilePaths)
	}
}

func TestExtractEvidenceErrorsWhenNoSnapshotsMatch(t *testing.T) {
	snapshots, _ := openTestStorage(t)
	extractor := NewEvidenceExtractor(snapshots)

	block := domain.ProposedBlock{ID: "block-empty", SnapshotIDs: []string{"does-not-exist"}}
	if _, err := extractor.ExtractEvidence(context.Background(), block); err == nil {
		t.Fatal("expected an error when no snapshots match the block's snapshot_ids")
	}
}

func TestExtractEvidenceSamplesOverlappingCalendarEvents(t *testing.T) {
	snapshots, calendar := openTestStorage(t)
	extractor := NewEvidenceExtractor(snapshots).WithCalendar(calendar)

	base := time.Unix(1_700_000_000, 0).UTC()
	mustInsertSnapshot(t, snapshots, domain.ActivitySnapshot{
		ID:         "snap-1",
		CapturedAt: base,
		Context:    domain.ActivityContext{AppName: "Zoom"},
	})

	platform := "zoom"
	event := domain.CalendarEvent{
		ID:                "evt-1",
		GoogleEventID:     "g-1",
		UserEmail:         "user@example.com",
		Summary:           "Deal Review",
		When:              domain.TimeRange{StartTS: base.Unix() - 60, EndTS: base.Unix() + 1800},
		MeetingPlatform:   &platform,
		IsRecurringSeries: true,
		IsOnlineMeeting:   true,
	}
	if err := calendar.Upsert(context.Background(), event); err != nil {
		t.Fatalf("calendar Upsert() err = %v", err)
	}

	block := domain.ProposedBlock{
		ID:          "block-2",
		When:        domain.TimeRange{StartTS: base.Unix(), EndTS: base.Add(30 * time.Minute).Unix()},
		SnapshotIDs: []string{"snap-1"},
	}

	evidence, err := extractor.ExtractEvidence(context.Background(), block)
	if err != nil {
		t.Fatalf("ExtractEvidence() err = %v", err)
	}

	if len(evidence.CalendarEventTitles) != 1 || evidence.CalendarEventTitles[0] != "Deal Review" {
		t.Errorf("CalendarEventTitles = %v, want [Deal Review]", evidence.CalendarEventTitles)
	}
	if len(evidence.MeetingPlatforms) != 1 || evidence.MeetingPlatforms[0] != "zoom" {
		t.Errorf("MeetingPlatforms = %v, want [zoom]", evidence.MeetingPlatforms)
	}
	if !evidence.HasRecurringMeeting {
		t.Error("expected HasRecurringMeeting = true")
	}
	if !evidence.HasOnlineMeeting {
		t.Error("expected HasOnlineMeeting = true")
	}
}

func TestExtractKeywordsFiltersShortWordsAndLowercases(t *testing.T) {
	got := extractKeywords("PROJECT Astro Model.xlsx - Excel 2024")
	want := map[string]bool{"project": true, "astro": true, "model": true, "xlsx": true, "excel": true, "2024": true}
	for _, kw := range got {
		if !want[kw] {
			t.Errorf("unexpected keyword %q", kw)
		}
		delete(want, kw)
	}
	if len(want) != 0 {
		t.Errorf("missing expected keywords: %v", want)
	}

	if got := extractKeywords("a an the and or but"); len(got) != 0 {
		t.Errorf("extractKeywords() = %v, want empty (all words <= 3 chars)", got)
	}
}

func TestVDRProviderMatchesKnownDomains(t *testing.T) {
	extractor := &EvidenceExtractor{vdrTrie: newVDRTrie()}

	cases := []struct {
		host string
		want string
	}{
		{"datasite.com", "datasite"},
		{"app.datasite.com", "datasite"},
		{"www.merrill.com", "datasite"},
		{"intralinks.com", "intralinks"},
		{"firmex.com", "firmex"},
		{"box.com", "box"},
		{"google.com", ""},
	}
	for _, tc := range cases {
		provider, ok := extractor.vdrProvider(tc.host)
		if tc.want == "" {
			if ok {
				t.Errorf("vdrProvider(%q) = %q, want no match", tc.host, provider)
			}
			continue
		}
		if !ok || provider != tc.want {
			t.Errorf("vdrProvider(%q) = (%q, %v), want (%q, true)", tc.host, provider, ok, tc.want)
		}
	}
}
