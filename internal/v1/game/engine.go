package game

import (
	"regexp"
	"strings"
	"time"

	"github.com/jeopardy-coordinator/roomserver/internal/v1/roomerr"
)

const (
	msPerSyllable   = 250 * time.Millisecond
	minSpeakingTime = 2000 * time.Millisecond
	maxSpeakingTime = 10000 * time.Millisecond
)

var leadingAside = regexp.MustCompile(`^\s*\([^)]*\)\s*`)
var underscoreRun = regexp.MustCompile(`_+`)
var vowelGroup = regexp.MustCompile(`(?i)[aeiouy]+`)
var nonLetter = regexp.MustCompile(`[^a-zA-Z]`)

// SpeakingTime estimates how long a host takes to read a clue prompt aloud
// (spec §4.4/Glossary "Speaking-time estimate"): strip a leading
// parenthesised aside, replace underscore runs with "blank", estimate
// syllables per word by a conservative vowel-group heuristic, sum, multiply
// by 250ms, clamp to [2000ms, 10000ms].
func SpeakingTime(prompt string) time.Duration {
	text := leadingAside.ReplaceAllString(prompt, "")
	text = underscoreRun.ReplaceAllString(text, " blank ")

	words := strings.Fields(text)
	total := 0
	for _, w := range words {
		total += estimateSyllables(w)
	}

	d := time.Duration(total) * msPerSyllable
	if d < minSpeakingTime {
		return minSpeakingTime
	}
	if d > maxSpeakingTime {
		return maxSpeakingTime
	}
	return d
}

// estimateSyllables applies the short-word rule (words of 3 letters or
// fewer count as one syllable) and otherwise counts vowel groups after
// stripping a trailing silent e. A word ending in "le" (as in "table")
// keeps its final e.
func estimateSyllables(word string) int {
	letters := nonLetter.ReplaceAllString(word, "")
	if letters == "" {
		return 0
	}
	if len(letters) <= 3 {
		return 1
	}

	stripped := letters
	if strings.HasSuffix(strings.ToLower(stripped), "e") && !strings.HasSuffix(strings.ToLower(stripped), "le") {
		stripped = stripped[:len(stripped)-1]
	}

	groups := vowelGroup.FindAllString(stripped, -1)
	if len(groups) == 0 {
		return 1
	}
	return len(groups)
}

// SelectableClue looks up a clue by category and clue id within a round and
// verifies the clue selection policy (spec §4.4): must exist, must not
// already be revealed.
func SelectableClue(r *Round, categoryID, clueID string) (*Category, *Clue, error) {
	for ci := range r.Categories {
		cat := &r.Categories[ci]
		if cat.ID != categoryID {
			continue
		}
		for qi := range cat.Clues {
			clue := &cat.Clues[qi]
			if clue.ID != clueID {
				continue
			}
			if clue.Revealed {
				return nil, nil, roomerr.State("clue already revealed")
			}
			return cat, clue, nil
		}
		return nil, nil, roomerr.NotFound("clue %s not found in category %s", clueID, categoryID)
	}
	return nil, nil, roomerr.NotFound("category %s not found in round", categoryID)
}

// NextRoundKind returns the round that follows kind, or ok=false once
// Double is complete (the caller initialises Final instead).
func NextRoundKind(kind RoundKind) (RoundKind, bool) {
	switch kind {
	case RoundFirst:
		return RoundDouble, true
	default:
		return "", false
	}
}

// ApplyJudgement mutates a participant's score per the correct/incorrect
// scoring rule (spec §4.4): correct adds the clue value, incorrect
// subtracts it. Score may go negative.
func ApplyJudgement(p *Participant, value int, correct bool) {
	if correct {
		p.Score += value
	} else {
		p.Score -= value
	}
}
