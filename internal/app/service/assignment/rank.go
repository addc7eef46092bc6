package assignment

import (
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

const specializationWeight = 10

// CoachCandidate is computed per decision and never persisted.
type CoachCandidate struct {
	CoachID                  string     `json:"coach_id"`
	SpecializationMatchCount int        `json:"specialization_match_count"`
	ActiveClientCount        int        `json:"active_client_count"`
	LastAssignedAt           *time.Time `json:"last_assigned_at"`
	Score                    int        `json:"score"`
}

// Score is 10 per matching focus area minus the current client load.
func Score(matches, activeClients int) int {
	return specializationWeight*matches - activeClients
}

// MatchCount counts focus areas found in specializations, case-insensitively.
// Duplicate focus areas count once.
func MatchCount(focusAreas, specializations []string) int {
	specs := make(map[string]struct{}, len(specializations))
	for _, s := range specializations {
		specs[normalize(s)] = struct{}{}
	}
	areas := lo.Uniq(lo.FilterMap(focusAreas, func(a string, _ int) (string, bool) {
		a = normalize(a)
		return a, a != ""
	}))
	return lo.CountBy(areas, func(a string) bool {
		_, ok := specs[a]
		return ok
	})
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Rank orders candidates best first: score descending, then fewer active
// clients, then least recently assigned with never-assigned coaches first.
func Rank(candidates []CoachCandidate) []CoachCandidate {
	out := make([]CoachCandidate, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.ActiveClientCount != b.ActiveClientCount {
			return a.ActiveClientCount < b.ActiveClientCount
		}
		switch {
		case a.LastAssignedAt == nil && b.LastAssignedAt != nil:
			return true
		case a.LastAssignedAt != nil && b.LastAssignedAt == nil:
			return false
		case a.LastAssignedAt != nil && !a.LastAssignedAt.Equal(*b.LastAssignedAt):
			return a.LastAssignedAt.Before(*b.LastAssignedAt)
		}
		return a.CoachID < b.CoachID
	})
	return out
}
