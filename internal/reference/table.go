// Package reference loads the static job-title to skill taxonomy used both
// as fallback lookup and as the base training set.
package reference

import (
	"sort"
	"strings"

	"skill-recommender/internal/normalize"
)

// Pair is one (job title, skill) row of the taxonomy.
type Pair struct {
	Title string
	Skill string
}

// Table is an immutable normalized-title -> skills index. Skills keep the
// order they first appear in the source rows.
type Table struct {
	skills map[string][]string
	titles []string
}

// NewTable indexes pairs under their normalized titles. Rows with an empty
// title or skill are skipped and duplicate skills are dropped.
func NewTable(pairs []Pair) *Table {
	skills := make(map[string][]string)
	seen := make(map[string]map[string]struct{})
	for _, p := range pairs {
		skill := strings.TrimSpace(p.Skill)
		if strings.TrimSpace(p.Title) == "" || skill == "" {
			continue
		}
		key := normalize.Title(p.Title, "")
		if seen[key] == nil {
			seen[key] = make(map[string]struct{})
		}
		if _, dup := seen[key][skill]; dup {
			continue
		}
		seen[key][skill] = struct{}{}
		skills[key] = append(skills[key], skill)
	}

	titles := make([]string, 0, len(skills))
	for title := range skills {
		titles = append(titles, title)
	}
	sort.Strings(titles)
	return &Table{skills: skills, titles: titles}
}

// Lookup returns the skills for an already normalized title.
func (t *Table) Lookup(normalizedTitle string) ([]string, bool) {
	if t == nil {
		return nil, false
	}
	skills, ok := t.skills[normalizedTitle]
	if !ok {
		return nil, false
	}
	out := make([]string, len(skills))
	copy(out, skills)
	return out, true
}

// Titles returns every normalized title in ascending order.
func (t *Table) Titles() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.titles))
	copy(out, t.titles)
	return out
}

// Len is the number of distinct normalized titles.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.titles)
}

// Mapping returns a deep copy of the index for callers that merge into it.
func (t *Table) Mapping() map[string][]string {
	out := make(map[string][]string, t.Len())
	if t == nil {
		return out
	}
	for title, skills := range t.skills {
		cp := make([]string, len(skills))
		copy(cp, skills)
		out[title] = cp
	}
	return out
}
