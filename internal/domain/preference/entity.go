package preference

import (
	"strconv"
	"strings"
)

const (
	KeyKeywords      = "keywords"
	KeyLocation      = "location"
	KeyTown          = "town"
	KeyRadius        = "radius"
	KeyStackKeywords = "stack_keywords"
	KeyBlocklist     = "blocklist"
)

var DefaultStackKeywords = []string{
	"frontend", "front end", "react", "next.js", "javascript", "typescript", "node",
	"full stack", "fullstack", "ui", "software developer", "software engineer", "developer", "engineer",
}

var DefaultBlocklist = []string{
	"ruby", "rails", "go", "golang", "php", "java", "c#", "magento", "android",
	"twilio", "scala", "haskell", "perl", "rust", "delphi",
}

const DefaultRadius = 10

type Preferences struct {
	Keywords      string `mapstructure:"keywords" json:"keywords"`
	Location      string `mapstructure:"location" json:"location"`
	Town          string `mapstructure:"town" json:"town"`
	Radius        int    `mapstructure:"radius" json:"radius"`
	StackKeywords string `mapstructure:"stack_keywords" json:"stack_keywords"`
	Blocklist     string `mapstructure:"blocklist" json:"blocklist"`
}

func (p Preferences) StackKeywordList() []string { return SplitList(p.StackKeywords) }

// BlocklistTerms falls back to DefaultBlocklist when none is stored.
func (p Preferences) BlocklistTerms() []string {
	if terms := SplitList(p.Blocklist); len(terms) > 0 {
		return terms
	}
	return DefaultBlocklist
}

func (p Preferences) RadiusOrDefault() int {
	if p.Radius > 0 {
		return p.Radius
	}
	return DefaultRadius
}

// TownOrLocation uses the explicit town, else the first segment of location.
func (p Preferences) TownOrLocation() string {
	if t := strings.TrimSpace(p.Town); t != "" {
		return t
	}
	town, _, _ := strings.Cut(p.Location, ",")
	return strings.TrimSpace(town)
}

func (p Preferences) ReadyForHunt() bool {
	return strings.TrimSpace(p.Keywords) != "" && strings.TrimSpace(p.Location) != ""
}

// Map flattens p into the key/value rows it is stored as.
func (p Preferences) Map() map[string]string {
	m := map[string]string{
		KeyKeywords:      p.Keywords,
		KeyLocation:      p.Location,
		KeyTown:          p.Town,
		KeyStackKeywords: p.StackKeywords,
		KeyBlocklist:     p.Blocklist,
	}
	if p.Radius > 0 {
		m[KeyRadius] = strconv.Itoa(p.Radius)
	}
	return m
}

// SplitList splits a comma separated list, trimming and dropping empties.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
