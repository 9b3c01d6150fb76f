// Package challenge owns the coding stage: deterministic selection of a
// challenge from the fixed catalogue and structured review of the submitted
// solution.
package challenge

import (
	"fmt"
	"hash/fnv"
	"strings"

	_ "embed"

	"github.com/spigell/interviewd/internal/interview"

	"gopkg.in/yaml.v3"
)

//go:embed catalogue.yaml
var catalogueYAML []byte

type catalogue struct {
	Challenges []interview.Challenge `yaml:"challenges"`
}

// Selector picks a coding challenge from the embedded catalogue. Challenges
// are never generated by the model; the catalogue is the closed set.
type Selector struct {
	byDifficulty map[interview.Difficulty][]interview.Challenge
}

// NewSelector parses the embedded catalogue.
func NewSelector() (*Selector, error) {
	var cat catalogue
	if err := yaml.Unmarshal(catalogueYAML, &cat); err != nil {
		return nil, fmt.Errorf("parse challenge catalogue: %w", err)
	}

	byDifficulty := make(map[interview.Difficulty][]interview.Challenge)
	for i, ch := range cat.Challenges {
		if strings.TrimSpace(ch.ID) == "" || strings.TrimSpace(ch.Description) == "" {
			return nil, fmt.Errorf("catalogue entry %d is incomplete", i)
		}
		byDifficulty[ch.Difficulty] = append(byDifficulty[ch.Difficulty], ch)
	}

	for _, d := range []interview.Difficulty{interview.DifficultyMedium, interview.DifficultyHard} {
		if len(byDifficulty[d]) == 0 {
			return nil, fmt.Errorf("catalogue has no %s challenges", d)
		}
	}

	return &Selector{byDifficulty: byDifficulty}, nil
}

// Select returns the challenge for the session. The choice is a pure function
// of difficulty and session id, so re-running a session never reassigns its
// challenge.
func (s *Selector) Select(difficulty interview.Difficulty, sessionID string) (*interview.Challenge, error) {
	pool := s.byDifficulty[difficulty]
	if len(pool) == 0 {
		return nil, fmt.Errorf("no challenges for difficulty %q", difficulty)
	}

	h := fnv.New64a()
	h.Write([]byte(sessionID))
	picked := pool[h.Sum64()%uint64(len(pool))]
	return &picked, nil
}
