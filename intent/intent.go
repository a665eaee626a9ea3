// Package intent maps transcript fragments to the speech-intent vocabulary
// using weighted pattern scoring.
package intent

import (
	"regexp"
	"strings"

	"cadence/event"
)

type Pattern struct {
	Re     *regexp.Regexp
	Weight float64
}

// Rule fires its Type when the summed weight of matching patterns reaches
// MinScore.
type Rule struct {
	Type     event.Type
	MinScore float64
	Patterns []Pattern
}

type Match struct {
	Type       event.Type
	Confidence float64
}

func p(expr string, weight float64) Pattern {
	return Pattern{Re: regexp.MustCompile(`\b` + expr + `\b`), Weight: weight}
}

// DefaultRules is tuned so that short ambiguous words ("no", "go", "more")
// cannot fire an intent on their own.
var DefaultRules = []Rule{
	{
		Type:     event.Stop,
		MinScore: 1.2,
		Patterns: []Pattern{
			p("stop", 1.4),
			p("wait", 1.0),
			p("hold on", 1.2),
			p("no", 0.6),
			p("don ?t", 1.1),
		},
	},
	{
		Type:     event.Go,
		MinScore: 1.1,
		Patterns: []Pattern{
			p("go", 0.8),
			p("keep going", 1.4),
			p("continue", 1.1),
			p("more", 0.7),
		},
	},
	{
		Type:     event.PositiveFeedback,
		MinScore: 1.1,
		Patterns: []Pattern{
			p("yes", 0.7),
			p("good", 0.7),
			p("that feels good", 1.5),
			p("like that", 1.2),
			p("right there", 1.0),
		},
	},
	{
		Type:     event.NegativeFeedback,
		MinScore: 1.1,
		Patterns: []Pattern{
			p("nope", 1.0),
			p("not that", 1.2),
			p("too much", 1.1),
			p("don ?t", 0.8),
		},
	},
	{
		Type:     event.PositionChangeRequest,
		MinScore: 1.1,
		Patterns: []Pattern{
			p("switch", 1.0),
			p("change position", 1.4),
			p("turn around", 1.3),
			p("new position", 1.1),
		},
	},
	{
		Type:     event.PaceChangeRequest,
		MinScore: 1.1,
		Patterns: []Pattern{
			p("slower", 1.2),
			p("faster", 1.2),
			p("gentle", 0.9),
			p("softer", 0.9),
		},
	},
}

var (
	nonWord    = regexp.MustCompile(`[^\w\s]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Normalize lowercases text, replaces punctuation with spaces and collapses
// whitespace. Apostrophes become spaces, so "don't" normalizes to "don t".
func Normalize(text string) string {
	s := strings.ToLower(text)
	s = nonWord.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

type Classifier struct {
	rules []Rule
}

func NewClassifier(rules []Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Default uses DefaultRules.
var Default = NewClassifier(DefaultRules)

// Classify returns every rule that fires on text, in rule order.
func (c *Classifier) Classify(text string) []Match {
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}

	var matches []Match
	for _, rule := range c.rules {
		var score, maxScore float64
		for _, pat := range rule.Patterns {
			maxScore += pat.Weight
			if pat.Re.MatchString(normalized) {
				score += pat.Weight
			}
		}
		if score >= rule.MinScore {
			matches = append(matches, Match{
				Type:       rule.Type,
				Confidence: min(1, score/max(1, maxScore)),
			})
		}
	}
	return matches
}

// Classify runs the default classifier.
func Classify(text string) []Match {
	return Default.Classify(text)
}
