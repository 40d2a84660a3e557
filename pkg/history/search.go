// ABOUTME: Fuzzy search over recorded state names and descriptions
// ABOUTME: Labels are NFC-normalized so composed and decomposed input match alike

package history

import (
	"slices"

	"github.com/sahilm/fuzzy"
	"golang.org/x/text/unicode/norm"
)

// Match is a single search hit.
type Match struct {
	StateID  StateID
	BranchID BranchID
	Label    string
	Score    int
	// MatchedIndexes are byte offsets into Label.
	MatchedIndexes []int
}

type labelSource []string

func (s labelSource) String(i int) string { return s[i] }
func (s labelSource) Len() int            { return len(s) }

func stateLabel(name, desc string) string {
	if desc == "" {
		return norm.NFC.String(name)
	}
	return norm.NFC.String(name + ": " + desc)
}

// Search ranks every stored state by how well query fuzzily matches its name
// and description, best first. A limit <= 0 returns all matches.
func (e *Engine[T]) Search(query string, limit int) []Match {
	e.mu.Lock()
	ids := make([]StateID, 0, len(e.states))
	for id := range e.states {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	labels := make(labelSource, len(ids))
	branches := make([]BranchID, len(ids))
	for i, id := range ids {
		st := e.states[id].state
		labels[i] = stateLabel(st.Name, st.Description)
		branches[i] = st.BranchID
	}
	e.mu.Unlock()

	if query == "" {
		return nil
	}
	results := fuzzy.FindFrom(norm.NFC.String(query), labels)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	out := make([]Match, len(results))
	for i, r := range results {
		out[i] = Match{
			StateID:        ids[r.Index],
			BranchID:       branches[r.Index],
			Label:          r.Str,
			Score:          r.Score,
			MatchedIndexes: r.MatchedIndexes,
		}
	}
	return out
}
