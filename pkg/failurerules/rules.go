// Package failurerules evaluates a small regex signal library over log text
// to flag candidate hardware/software failures ahead of (and independent
// from) LLM classification. Grounded on
// original_source/app/services/failure_rules.py, with the YAML rule file
// embedded into the binary instead of read from a sidecar path.
package failurerules

import (
	_ "embed"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/rhordoan/logpulse/pkg/models"
)

//go:embed rules.yml
var embeddedRules []byte

type ruleDoc struct {
	Rules []ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	Name        string `yaml:"name"`
	FailureType string `yaml:"failure_type"`
	Pattern     string `yaml:"pattern"`
}

// CompiledRule pairs a failure-type label with its compiled signal pattern.
type CompiledRule struct {
	Name        string
	FailureType models.FailureType
	Regex       *regexp.Regexp
}

// Library holds the active, compiled rule set.
type Library struct {
	rules []CompiledRule
}

// Load parses and compiles the embedded rule set. Invalid patterns are
// skipped rather than failing the whole library.
func Load() *Library {
	var doc ruleDoc
	if err := yaml.Unmarshal(embeddedRules, &doc); err != nil {
		return &Library{}
	}

	lib := &Library{}
	for _, r := range doc.Rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			continue
		}
		lib.rules = append(lib.rules, CompiledRule{
			Name:        r.Name,
			FailureType: models.FailureType(r.FailureType),
			Regex:       re,
		})
	}
	return lib
}

// Signal is the rule-evaluation outcome for one piece of text.
type Signal struct {
	HasSignal bool
	Label     models.FailureType
	Score     float64
	Evidence  []string
}

// Match evaluates every rule against text and returns the aggregate signal:
// the first matching rule's failure type becomes Label (ties broken by rule
// order), and Score grows with the number of distinct rules that fired,
// capped at 1.0.
func (l *Library) Match(text string) Signal {
	var evidence []string
	var label models.FailureType = models.FailureUnknown

	for _, r := range l.rules {
		if r.Regex.MatchString(text) {
			evidence = append(evidence, r.Name)
			if label == models.FailureUnknown {
				label = r.FailureType
			}
		}
	}

	score := 0.0
	if len(evidence) > 0 {
		score = 0.2 * float64(len(evidence))
		if score > 1.0 {
			score = 1.0
		}
	}

	return Signal{
		HasSignal: len(evidence) > 0,
		Label:     label,
		Score:     score,
		Evidence:  evidence,
	}
}

// MajorityLabel returns the most frequent non-unknown label across a set of
// documents, used to label a batch-clustered prototype (§4.5). Returns
// "unknown" when no document produced a signal.
func (l *Library) MajorityLabel(documents []string) models.FailureType {
	counts := map[models.FailureType]int{}
	for _, doc := range documents {
		sig := l.Match(doc)
		if sig.HasSignal {
			counts[sig.Label]++
		}
	}

	best := models.FailureUnknown
	bestCount := 0
	for label, count := range counts {
		if count > bestCount {
			best = label
			bestCount = count
		}
	}
	return best
}
