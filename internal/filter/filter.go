// Package filter decides which scraped postings are worth keeping for a user.
package filter

import (
	"regexp"

	"jobpilot/internal/domain/job"

	"go.uber.org/zap"
)

type Reason string

const (
	ReasonKept       Reason = "kept"
	ReasonNoKeywords Reason = "no_keywords"
	ReasonBlocked    Reason = "blocked"
	ReasonIrrelevant Reason = "irrelevant"
	ReasonLenient    Reason = "lenient"
)

type Decision struct {
	Keep   bool
	Reason Reason
	// Term is the blocklist term or stack keyword that decided the outcome.
	Term string
}

// Step summarizes one Apply call.
type Step struct {
	Initial    int
	Blocked    int
	Irrelevant int
	Lenient    int
	Left       int
}

func (s Step) Dropped() int { return s.Blocked + s.Irrelevant }

var genericFrontendTitle = regexp.MustCompile(`\b(front[\s-]?end|web|ui)\b.*\b(developer|engineer|dev)\b`)

// Relevance applies the blocklist and the user's stack keywords. The
// blocklist is matched on the title only and always wins.
type Relevance struct {
	blocklist []string
	keywords  [][]string
	frontend  bool
}

func New(blocklist, stackKeywords []string) *Relevance {
	r := &Relevance{}
	for _, b := range blocklist {
		if b = Normalize(b); b != "" {
			r.blocklist = append(r.blocklist, b)
		}
	}
	for _, k := range stackKeywords {
		variants := expand(k)
		if len(variants) == 0 {
			continue
		}
		r.keywords = append(r.keywords, variants)
		if _, ok := frontendTech[variants[0]]; ok {
			r.frontend = true
		}
	}
	return r
}

func (r *Relevance) Check(raw job.Raw) Decision {
	title := Normalize(raw.Title)
	for _, b := range r.blocklist {
		if ContainsTerm(title, b) {
			return Decision{Reason: ReasonBlocked, Term: b}
		}
	}
	if len(r.keywords) == 0 {
		return Decision{Keep: true, Reason: ReasonNoKeywords}
	}

	desc := ""
	if raw.Description != nil {
		desc = Normalize(*raw.Description)
	}
	for _, variants := range r.keywords {
		for _, k := range variants {
			if ContainsPrefix(title, k) || ContainsPrefix(desc, k) {
				return Decision{Keep: true, Reason: ReasonKept, Term: variants[0]}
			}
		}
	}

	// Listings rarely carry a description before analysis; keep generic
	// frontend roles for frontend users so the pipeline is not starved.
	if desc == "" && r.frontend && genericFrontendTitle.MatchString(title) {
		return Decision{Keep: true, Reason: ReasonLenient}
	}
	return Decision{Reason: ReasonIrrelevant}
}

// Apply keeps the relevant postings, preserving order.
func (r *Relevance) Apply(items []job.Raw, log *zap.Logger) ([]job.Raw, Step) {
	step := Step{Initial: len(items)}
	out := make([]job.Raw, 0, len(items))
	for _, it := range items {
		d := r.Check(it)
		switch d.Reason {
		case ReasonBlocked:
			step.Blocked++
		case ReasonIrrelevant:
			step.Irrelevant++
		case ReasonLenient:
			step.Lenient++
		}
		if log != nil && !d.Keep {
			log.Debug("posting filtered out",
				zap.String("title", it.Title),
				zap.String("reason", string(d.Reason)),
				zap.String("term", d.Term),
			)
		}
		if d.Keep {
			out = append(out, it)
		}
	}
	step.Left = len(out)
	return out, step
}

// Keywords returns the configured stack keywords, normalized.
func (r *Relevance) Keywords() []string {
	out := make([]string, 0, len(r.keywords))
	for _, v := range r.keywords {
		out = append(out, v[0])
	}
	return out
}

// Blocked reports whether title hits the blocklist.
func (r *Relevance) Blocked(title string) bool {
	return r.Check(job.Raw{Title: title}).Reason == ReasonBlocked
}
