// Package heuristics holds the versioned keyword and pattern tables the
// scorers consult. Tables are data: the defaults ship embedded as YAML and can
// be replaced wholesale from a file without touching scoring code.
package heuristics

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var defaultTables []byte

// Tables is the on-disk shape of the lexicon.
type Tables struct {
	Version    string `yaml:"version"`
	Disallowed struct {
		Sensitive []string `yaml:"sensitive"`
		PromoPR   []string `yaml:"promo_pr"`
		Giveaway  []string `yaml:"giveaway"`
	} `yaml:"disallowed"`
	Quality struct {
		Profanity        []string            `yaml:"profanity"`
		CrudeHumor       []string            `yaml:"crude_humor"`
		OffTopic         []string            `yaml:"off_topic"`
		MemeTemplates    []string            `yaml:"meme_templates"`
		HealthCategories map[string][]string `yaml:"health_categories"`
		Actionable       []string            `yaml:"actionable"`
		Credentials      []string            `yaml:"credentials"`
		PromoCTA         []string            `yaml:"promo_cta"`
	} `yaml:"quality"`
	Relevance struct {
		Domain      []string `yaml:"domain"`
		OffTopic    []string `yaml:"off_topic"`
		Authorities []string `yaml:"authorities"`
	} `yaml:"relevance"`
	Replyability struct {
		Question    []string            `yaml:"question"`
		Controversy []string            `yaml:"controversy"`
		MindChange  []string            `yaml:"mind_change"`
		Protocol    []string            `yaml:"protocol"`
		Quantified  []string            `yaml:"quantified"`
		StrongPromo map[string][]string `yaml:"strong_promo"`
		WeakPromo   []string            `yaml:"weak_promo"`
	} `yaml:"replyability"`
	Context struct {
		StopWords []string `yaml:"stop_words"`
		Anchors   []string `yaml:"anchors"`
	} `yaml:"context"`
}

// Lexicon is the compiled, read-only form of Tables. It is safe for
// concurrent use.
type Lexicon struct {
	Version string

	Sensitive PatternSet
	PromoPR   PatternSet
	Giveaway  PatternSet

	Profanity        PatternSet
	CrudeHumor       PatternSet
	OffTopicBlock    PatternSet
	MemeTemplates    PatternSet
	HealthCategories CategorySet
	Actionable       PatternSet
	Credentials      PatternSet
	PromoCTA         PatternSet

	Domain       PatternSet
	OffTopicSoft PatternSet
	authorities  map[string]bool

	Question    PatternSet
	Controversy PatternSet
	MindChange  PatternSet
	Protocol    PatternSet
	Quantified  PatternSet
	StrongPromo CategorySet
	WeakPromo   PatternSet

	stopWords   map[string]bool
	anchorTerms map[string]bool
}

// Default returns the embedded lexicon. It panics if the embedded tables are
// invalid, which is a build defect.
func Default() *Lexicon {
	return defaultLexicon()
}

var defaultLexicon = sync.OnceValue(func() *Lexicon {
	lex, err := Parse(defaultTables)
	if err != nil {
		panic(fmt.Sprintf("heuristics: embedded lexicon: %v", err))
	}
	return lex
})

// LoadFile reads and compiles a lexicon from a YAML file.
func LoadFile(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon %s: %w", path, err)
	}
	lex, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse lexicon %s: %w", path, err)
	}
	return lex, nil
}

// Parse compiles YAML tables into a Lexicon.
func Parse(data []byte) (*Lexicon, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode tables: %w", err)
	}
	return Compile(t)
}

// Compile builds a Lexicon from decoded tables.
func Compile(t Tables) (*Lexicon, error) {
	if t.Version == "" {
		return nil, fmt.Errorf("tables missing version")
	}

	c := compiler{}
	lex := &Lexicon{
		Version: t.Version,

		Sensitive: c.set("disallowed.sensitive", t.Disallowed.Sensitive),
		PromoPR:   c.set("disallowed.promo_pr", t.Disallowed.PromoPR),
		Giveaway:  c.set("disallowed.giveaway", t.Disallowed.Giveaway),

		Profanity:        c.set("quality.profanity", t.Quality.Profanity),
		CrudeHumor:       c.set("quality.crude_humor", t.Quality.CrudeHumor),
		OffTopicBlock:    c.set("quality.off_topic", t.Quality.OffTopic),
		MemeTemplates:    c.set("quality.meme_templates", t.Quality.MemeTemplates),
		HealthCategories: c.categories("quality.health_categories", t.Quality.HealthCategories),
		Actionable:       c.set("quality.actionable", t.Quality.Actionable),
		Credentials:      c.set("quality.credentials", t.Quality.Credentials),
		PromoCTA:         c.set("quality.promo_cta", t.Quality.PromoCTA),

		Domain:       c.set("relevance.domain", t.Relevance.Domain),
		OffTopicSoft: c.set("relevance.off_topic", t.Relevance.OffTopic),
		authorities:  lowerSet(t.Relevance.Authorities),

		Question:    c.set("replyability.question", t.Replyability.Question),
		Controversy: c.set("replyability.controversy", t.Replyability.Controversy),
		MindChange:  c.set("replyability.mind_change", t.Replyability.MindChange),
		Protocol:    c.set("replyability.protocol", t.Replyability.Protocol),
		Quantified:  c.set("replyability.quantified", t.Replyability.Quantified),
		StrongPromo: c.categories("replyability.strong_promo", t.Replyability.StrongPromo),
		WeakPromo:   c.set("replyability.weak_promo", t.Replyability.WeakPromo),

		stopWords: lowerSet(t.Context.StopWords),
	}
	if c.err != nil {
		return nil, c.err
	}

	lex.anchorTerms = make(map[string]bool)
	for _, sentence := range t.Context.Anchors {
		for _, term := range lex.Terms(sentence) {
			lex.anchorTerms[term] = true
		}
	}
	if len(lex.anchorTerms) == 0 {
		return nil, fmt.Errorf("context.anchors yields no terms")
	}

	return lex, nil
}

// IsAuthority reports whether handle is on the authority allow-list.
func (l *Lexicon) IsAuthority(handle string) bool {
	return l.authorities[strings.ToLower(strings.TrimPrefix(handle, "@"))]
}

// IsAnchorTerm reports whether term appears in the brand anchor vocabulary.
func (l *Lexicon) IsAnchorTerm(term string) bool {
	return l.anchorTerms[term]
}

// AnchorTermCount returns the size of the anchor vocabulary.
func (l *Lexicon) AnchorTermCount() int { return len(l.anchorTerms) }

// Terms tokenizes text into distinct lowercase terms longer than three
// characters, excluding stop words, in first-seen order.
func (l *Lexicon) Terms(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]bool, len(words))
	var terms []string
	for _, w := range words {
		if len([]rune(w)) <= 3 || l.stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return terms
}

// PatternSet is an ordered list of compiled case-insensitive patterns.
type PatternSet struct {
	patterns []*regexp.Regexp
}

// Any reports whether at least one pattern matches.
func (p PatternSet) Any(text string) bool {
	for _, re := range p.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Count returns how many distinct patterns match.
func (p PatternSet) Count(text string) int {
	n := 0
	for _, re := range p.patterns {
		if re.MatchString(text) {
			n++
		}
	}
	return n
}

// Len returns the number of patterns.
func (p PatternSet) Len() int { return len(p.patterns) }

// CategorySet groups pattern sets under names, iterated in sorted name order.
type CategorySet struct {
	names []string
	sets  map[string]PatternSet
}

// Matched returns the names of categories with at least one matching pattern.
func (c CategorySet) Matched(text string) []string {
	var out []string
	for _, name := range c.names {
		if c.sets[name].Any(text) {
			out = append(out, name)
		}
	}
	return out
}

// Names returns the category names in sorted order.
func (c CategorySet) Names() []string { return append([]string(nil), c.names...) }

type compiler struct {
	err error
}

func (c *compiler) set(table string, patterns []string) PatternSet {
	ps := PatternSet{patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			if c.err == nil {
				c.err = fmt.Errorf("%s: pattern %q: %w", table, p, err)
			}
			continue
		}
		ps.patterns = append(ps.patterns, re)
	}
	return ps
}

func (c *compiler) categories(table string, m map[string][]string) CategorySet {
	cs := CategorySet{sets: make(map[string]PatternSet, len(m))}
	for name, patterns := range m {
		cs.names = append(cs.names, name)
		cs.sets[name] = c.set(table+"."+name, patterns)
	}
	sort.Strings(cs.names)
	return cs
}

func lowerSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, it := range items {
		out[strings.ToLower(strings.TrimSpace(it))] = true
	}
	return out
}
