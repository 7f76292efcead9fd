// Package classification turns raw activity snapshots into the evidence an
// LLM needs to classify a block of work against a WBS element: fact
// extraction only, no inference performed locally.
package classification

import (
	"context"
	"net/url"
	"strings"
	"unicode"

	"github.com/pulsearc/agent-core/infrastructure/cache"
	apperrors "github.com/pulsearc/agent-core/infrastructure/errors"
	"github.com/pulsearc/agent-core/internal/domain"
	"github.com/pulsearc/agent-core/internal/storage"
)

// calendarStrideSeconds is the sampling step used to sweep a block's time
// range for overlapping calendar events; 15 minutes matches the coarsest
// granularity calendar events are normally scheduled at.
const calendarStrideSeconds = 900

// vdrDomains maps known virtual-data-room host substrings to the provider
// label reported in evidence. Datasite acquired Merrill's VDR business, so
// both brand names resolve to the "datasite" provider.
var vdrDomains = map[string]string{
	"datasite.com":       "datasite",
	"merrill.com":        "datasite",
	"intralinks.com":     "intralinks",
	"firmex.com":         "firmex",
	"box.com":            "box",
	"dfinsolutions.com":  "dfin",
	"ansarada.com":       "ansarada",
}

// EvidenceExtractor collects deduplicated signals (apps, keywords, URL
// hosts, calendar events) from the snapshots referenced by a ProposedBlock.
type EvidenceExtractor struct {
	snapshots *storage.SnapshotRepository
	calendar  *storage.CalendarEventRepository
	vdrTrie   *cache.Trie
}

// NewEvidenceExtractor builds an extractor with no calendar integration.
func NewEvidenceExtractor(snapshots *storage.SnapshotRepository) *EvidenceExtractor {
	return &EvidenceExtractor{snapshots: snapshots, vdrTrie: newVDRTrie()}
}

// WithCalendar returns a copy of the extractor that also samples calendar
// events overlapping a block's time range.
func (e *EvidenceExtractor) WithCalendar(calendar *storage.CalendarEventRepository) *EvidenceExtractor {
	return &EvidenceExtractor{snapshots: e.snapshots, calendar: calendar, vdrTrie: e.vdrTrie}
}

func newVDRTrie() *cache.Trie {
	t := cache.NewTrie()
	for domainName, provider := range vdrDomains {
		t.Insert(domainName, provider)
	}
	return t
}

// ExtractEvidence fetches the snapshots referenced by block, extracts all
// signals from them plus any overlapping calendar events, and packages the
// result as BlockEvidence ready for an LLMClassifier.
func (e *EvidenceExtractor) ExtractEvidence(ctx context.Context, block domain.ProposedBlock) (domain.BlockEvidence, error) {
	snapshots, err := e.fetchSnapshotsForBlock(ctx, block)
	if err != nil {
		return domain.BlockEvidence{}, err
	}

	evidence := domain.BlockEvidence{
		BlockID:      block.ID,
		StartTS:      block.When.StartTS,
		EndTS:        block.When.EndTS,
		DurationSecs: block.When.EndTS - block.When.StartTS,
		Activities:   block.Activities,
	}

	apps := newStringSet()
	windowTitles := newStringSet()
	keywords := newStringSet()
	urlDomains := newStringSet()
	filePaths := newStringSet()
	vdrProviders := newStringSet()

	for _, snap := range snapshots {
		if snap.Context.AppName != "" {
			apps.add(snap.Context.AppName)
		}

		if title := snap.Context.WindowTitle; title != "" {
			windowTitles.add(title)
			for _, kw := range extractKeywords(title) {
				keywords.add(kw)
			}
		}

		if host, ok := e.urlHost(snap.Context.URL); ok {
			urlDomains.add(host)
			if provider, ok := e.vdrProvider(host); ok {
				vdrProviders.add(provider)
			}
		}

		if path := snap.Context.FilePath; path != "" {
			filePaths.add(path)
		}
	}

	evidence.Apps = apps.values()
	evidence.WindowTitles = windowTitles.values()
	evidence.Keywords = keywords.values()
	evidence.URLDomains = urlDomains.values()
	evidence.FilePaths = filePaths.values()
	evidence.VDRProviders = vdrProviders.values()

	if e.calendar != nil {
		calendarTitles, meetingPlatforms, hasRecurring, hasOnline := e.sampleCalendarEvents(ctx, block.When.StartTS, block.When.EndTS)
		evidence.CalendarEventTitles = calendarTitles
		evidence.MeetingPlatforms = meetingPlatforms
		evidence.HasRecurringMeeting = hasRecurring
		evidence.HasOnlineMeeting = hasOnline
	}

	return evidence, nil
}

func (e *EvidenceExtractor) fetchSnapshotsForBlock(ctx context.Context, block domain.ProposedBlock) ([]domain.ActivitySnapshot, error) {
	all, err := e.snapshots.FindByIDs(ctx, block.SnapshotIDs)
	if err != nil {
		return nil, apperrors.DatabaseError("fetch_snapshots_for_block", err)
	}
	if len(all) == 0 {
		return nil, apperrors.NotFound("snapshots_for_block", block.ID)
	}
	return all, nil
}

// sampleCalendarEvents sweeps [startTS, endTS] at calendarStrideSeconds,
// accumulating every distinct event title, meeting platform, and
// recurring/online flag encountered along the way.
func (e *EvidenceExtractor) sampleCalendarEvents(ctx context.Context, startTS, endTS int64) (titles, platforms []string, hasRecurring, hasOnline bool) {
	titleSet := newStringSet()
	platformSet := newStringSet()

	for ts := startTS; ts <= endTS; ts += calendarStrideSeconds {
		result := e.calendar.FindNearTimestamp(ctx, ts, calendarStrideSeconds)
		event, found, err := result.Unwrap()
		if err != nil || !found {
			continue
		}

		titleSet.add(event.Summary)
		if event.MeetingPlatform != nil && *event.MeetingPlatform != "" {
			platformSet.add(*event.MeetingPlatform)
		}
		if event.IsRecurringSeries {
			hasRecurring = true
		}
		if event.IsOnlineMeeting {
			hasOnline = true
		}
	}

	return titleSet.values(), platformSet.values(), hasRecurring, hasOnline
}

// urlHost extracts the host portion of a snapshot's raw URL, if any.
func (e *EvidenceExtractor) urlHost(rawURL string) (string, bool) {
	if rawURL == "" {
		return "", false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return "", false
	}
	return parsed.Hostname(), true
}

// vdrProvider reports whether host matches a known virtual-data-room
// domain, checking every suffix of host against the prefix trie since the
// trie only matches "inserted key is a prefix of s", not "contains".
func (e *EvidenceExtractor) vdrProvider(host string) (string, bool) {
	runes := []rune(host)
	for i := range runes {
		if provider, ok := e.vdrTrie.HasPrefix(string(runes[i:])); ok {
			return provider, true
		}
	}
	return "", false
}

// extractKeywords splits text on non-alphanumeric runes, keeps words longer
// than 3 characters, and lowercases the result.
func extractKeywords(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	keywords := make([]string, 0, len(words))
	for _, w := range words {
		if len([]rune(w)) > 3 {
			keywords = append(keywords, strings.ToLower(w))
		}
	}
	return keywords
}

type stringSet struct {
	seen map[string]struct{}
	ord  []string
}

func newStringSet() *stringSet {
	return &stringSet{seen: make(map[string]struct{})}
}

func (s *stringSet) add(v string) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.ord = append(s.ord, v)
}

func (s *stringSet) values() []string {
	if len(s.ord) == 0 {
		return nil
	}
	return s.ord
}
