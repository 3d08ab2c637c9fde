// Package fuzzy scores free text against small candidate sets. It is
// deliberately biased toward abstaining: a tied top score yields no match so
// the caller asks a clarifying question instead of guessing.
package fuzzy

import (
	"strconv"
	"strings"
	"unicode"
)

const (
	tokenWeight    = 1
	ordinalWeight  = 3
	fullNameWeight = 3
)

var stopwords = map[string]struct{}{
	"la": {}, "el": {}, "de": {}, "las": {}, "los": {}, "que": {},
	"mi": {}, "una": {}, "uno": {}, "para": {}, "por": {},
}

// Candidate is one entry in the set being searched.
type Candidate struct {
	ID       string
	Ordinal  int      // 1-based position as listed to the user
	FullName string   // complete display name, for substring containment
	Profile  []string // searchable tokens, lowercased
}

// Match returns the single highest-scoring candidate, or ok=false when no
// candidate scores or the top score is shared.
func Match(utterance string, candidates []Candidate) (Candidate, bool) {
	tokens := Tokenize(utterance)
	if len(tokens) == 0 || len(candidates) == 0 {
		return Candidate{}, false
	}
	normalized := strings.ToLower(strings.TrimSpace(utterance))

	best := Candidate{}
	bestScore, tied := 0, false

	for _, cand := range candidates {
		score := scoreCandidate(tokens, normalized, cand)
		switch {
		case score > bestScore:
			best, bestScore, tied = cand, score, false
		case score == bestScore && score > 0:
			tied = true
		}
	}

	if bestScore == 0 || tied {
		return Candidate{}, false
	}
	return best, true
}

func scoreCandidate(tokens []string, normalized string, cand Candidate) int {
	profile := make(map[string]struct{}, len(cand.Profile))
	for _, p := range cand.Profile {
		profile[strings.ToLower(p)] = struct{}{}
	}

	score := 0
	for _, tok := range tokens {
		if _, ok := profile[tok]; ok {
			score += tokenWeight
		}
		if cand.Ordinal > 0 && tok == strconv.Itoa(cand.Ordinal) {
			score += ordinalWeight
		}
	}

	if name := strings.ToLower(strings.TrimSpace(cand.FullName)); name != "" && strings.Contains(normalized, name) {
		score += fullNameWeight
	}
	return score
}

// Tokenize lowercases and splits the utterance, dropping trivial tokens.
// Numbers survive regardless of length so ordinals keep working.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if isNumber(f) {
			tokens = append(tokens, f)
			continue
		}
		if len([]rune(f)) < 3 {
			continue
		}
		if _, ok := stopwords[f]; ok {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
