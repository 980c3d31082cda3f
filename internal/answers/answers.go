// Package answers resolves agent questions against pre-configured answer
// maps. Resolution is a pure function of (question, map): no state is held
// between questions within a run.
package answers

import (
	"sort"
	"strings"

	"openclawpack/internal/transport"
)

// MultiSelectSeparator joins the labels of a multi-select answer. Map values
// for multi-select questions carry the chosen labels in this joined form.
const MultiSelectSeparator = ", "

// JoinLabels renders a multi-select answer value from option labels.
func JoinLabels(labels ...string) string {
	return strings.Join(labels, MultiSelectSeparator)
}

// Resolve matches a question against the answer map using three tiers, in
// order, first match wins:
//
//  1. Exact: the question's full text equals a map key.
//  2. Substring: a map key appears as a case-insensitive substring anywhere
//     in the question text. Keys are tried in sorted order so resolution is
//     deterministic regardless of map iteration order.
//  3. Fallback: the first candidate option, or the empty string for a
//     free-text question.
//
// Question phrasing is not a stable contract across versions of the skill
// framework, so tier 2 matches on short stable keyword fragments that
// survive rewording. Tier 3 guarantees forward progress: an unanticipated
// question never blocks the run. The returned flag reports whether the
// fallback tier fired, so callers can surface that a decision was made on
// the operator's behalf. Resolution never fails.
func Resolve(q transport.Question, answerMap map[string]string) (answer string, fallback bool) {
	if v, ok := answerMap[q.Text]; ok {
		return v, false
	}

	lower := strings.ToLower(q.Text)
	keys := make([]string, 0, len(answerMap))
	for k := range answerMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.Contains(lower, strings.ToLower(k)) {
			return answerMap[k], false
		}
	}

	if len(q.Options) > 0 {
		return q.Options[0], true
	}
	return "", true
}

// Merge layers overrides on top of defaults, overrides winning key-for-key.
// Neither input is mutated.
func Merge(defaults, overrides map[string]string) map[string]string {
	merged := make(map[string]string, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
