// Package ranking orders scored candidates into a shortlist.
package ranking

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spigell/talentscout/internal/scoring"
)

// SortKey selects the display order of a shortlist.
type SortKey string

const (
	SortByScore       SortKey = "score"
	SortByName        SortKey = "name"
	SortByMissing     SortKey = "missing"
	SortByCandidateID SortKey = "candidate_id"
)

// ParseSortKey maps user input onto a SortKey.
func ParseSortKey(raw string) (SortKey, error) {
	switch key := SortKey(strings.ToLower(strings.TrimSpace(raw))); key {
	case "":
		return SortByScore, nil
	case SortByScore, SortByName, SortByMissing, SortByCandidateID:
		return key, nil
	default:
		return "", fmt.Errorf("unknown sort key %q", raw)
	}
}

// DefaultReportThreshold is the score a candidate needs to be reported as
// shortlisted when no minimum score is configured.
const DefaultReportThreshold = 60

const (
	StatusShortlisted = "Shortlisted"
	StatusRejected    = "Rejected"
)

// RankedShortlist holds one result per successfully profiled candidate,
// ordered by score descending with ties broken by candidate id ascending.
type RankedShortlist struct {
	Items []scoring.MatchResult `json:"items"`
}

// Rank orders a copy of results. The order does not depend on the order of
// the input, and ranking a ranked list returns the same list.
func Rank(results []scoring.MatchResult) RankedShortlist {
	items := make([]scoring.MatchResult, len(results))
	copy(items, results)

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].CandidateID < items[j].CandidateID
	})

	return RankedShortlist{Items: items}
}

func (s RankedShortlist) Len() int {
	return len(s.Items)
}

// Find returns a copy of the result for the candidate id.
func (s RankedShortlist) Find(id string) (scoring.MatchResult, bool) {
	for _, item := range s.Items {
		if item.CandidateID == id {
			return item, true
		}
	}
	return scoring.MatchResult{}, false
}

func (s RankedShortlist) IDs() []string {
	ids := make([]string, 0, len(s.Items))
	for _, item := range s.Items {
		ids = append(ids, item.CandidateID)
	}
	return ids
}

// Filter keeps the results for which keep returns true, preserving order.
func (s RankedShortlist) Filter(keep func(scoring.MatchResult) bool) (RankedShortlist, int) {
	items := make([]scoring.MatchResult, 0, len(s.Items))
	for _, item := range s.Items {
		if keep(item) {
			items = append(items, item)
		}
	}
	return RankedShortlist{Items: items}, len(s.Items) - len(items)
}

// Top returns the first n results. A non-positive n returns everything.
func (s RankedShortlist) Top(n int) RankedShortlist {
	if n <= 0 || n >= len(s.Items) {
		return s.copy()
	}
	items := make([]scoring.MatchResult, n)
	copy(items, s.Items[:n])
	return RankedShortlist{Items: items}
}

// SortBy returns a re-ordered copy for display. Ties fall back to candidate id.
func (s RankedShortlist) SortBy(key SortKey, descending bool) RankedShortlist {
	out := s.copy()

	less := func(a, b scoring.MatchResult) int {
		switch key {
		case SortByName:
			return strings.Compare(strings.ToLower(a.CandidateName), strings.ToLower(b.CandidateName))
		case SortByMissing:
			return a.MissingSkills.Len() - b.MissingSkills.Len()
		case SortByCandidateID:
			return 0
		default:
			return a.Score - b.Score
		}
	}

	sort.SliceStable(out.Items, func(i, j int) bool {
		a, b := out.Items[i], out.Items[j]
		c := less(a, b)
		if descending {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
		if descending && key == SortByCandidateID {
			return a.CandidateID > b.CandidateID
		}
		return a.CandidateID < b.CandidateID
	})

	return out
}

// Report flattens the shortlist into string maps for display. Candidates
// scoring at least threshold are marked Shortlisted, the rest Rejected. A
// threshold of zero or less uses DefaultReportThreshold.
func (s RankedShortlist) Report(threshold int) []map[string]string {
	if threshold <= 0 {
		threshold = DefaultReportThreshold
	}

	report := make([]map[string]string, 0, len(s.Items))
	for i, item := range s.Items {
		status := StatusRejected
		if item.Score >= threshold {
			status = StatusShortlisted
		}
		entry := map[string]string{
			"rank":           strconv.Itoa(i + 1),
			"status":         status,
			"candidate_id":   item.CandidateID,
			"name":           item.CandidateName,
			"email":          item.CandidateEmail,
			"score":          strconv.Itoa(item.Score),
			"base_score":     strconv.Itoa(item.BaseScore),
			"matched_skills": item.MatchedSkills.String(),
			"missing_skills": item.MissingSkills.String(),
			"rationale":      item.Rationale,
		}
		if item.QualitativeUnavailable {
			entry["qualitative"] = "unavailable"
		} else {
			entry["qualitative"] = fmt.Sprintf("%+d", item.QualitativeAdjustment)
		}
		report = append(report, entry)
	}
	return report
}

// DumpToTmpFile writes the shortlist as indented JSON to a temporary file and
// returns its path.
func (s RankedShortlist) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "shortlist_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return "", err
	}
	return file.Name(), nil
}

func (s RankedShortlist) copy() RankedShortlist {
	items := make([]scoring.MatchResult, len(s.Items))
	copy(items, s.Items)
	return RankedShortlist{Items: items}
}
