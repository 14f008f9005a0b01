// Package retrain rebuilds the skill classifier from the reference table and
// accumulated feedback, publishes it atomically and keeps serving replicas on
// the published version.
package retrain

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"skill-recommender/internal/artifact"
	"skill-recommender/internal/classifier"
	"skill-recommender/internal/employees"
	"skill-recommender/internal/normalize"
	"skill-recommender/internal/reference"
	"skill-recommender/internal/shared/metrics"
	"skill-recommender/internal/shared/telemetry"
	"skill-recommender/internal/skills"
)

// ReferenceSource yields the current reference table.
type ReferenceSource interface {
	Load(ctx context.Context) (*reference.Table, error)
}

// Pipeline is one full retrain: merge, fit, publish, swap.
type Pipeline struct {
	Reference ReferenceSource
	Skills    skills.Repo
	Employees employees.Repo
	Store     *artifact.Store
	Handle    *artifact.Handle
	Options   classifier.Options
	// Keep bounds how many published bundles are retained; 0 keeps all.
	Keep int
}

// Run trains on the merged mapping and publishes the result. The serving
// handle is swapped only after publication succeeded.
func (p *Pipeline) Run(ctx context.Context) (artifact.Manifest, error) {
	var (
		table *reference.Table
		votes []skills.LabeledVote
		staff []employees.Employee
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if table, err = p.Reference.Load(gctx); err != nil {
			return fmt.Errorf("load reference table: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if votes, err = p.Skills.ListVotes(gctx); err != nil {
			return fmt.Errorf("load feedback: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if staff, err = p.Employees.List(gctx); err != nil {
			return fmt.Errorf("load employees: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return artifact.Manifest{}, err
	}

	titles := make(map[int64]string, len(staff))
	for _, e := range staff {
		if strings.TrimSpace(e.JobTitle) != "" {
			titles[e.ID] = normalize.Title(e.JobTitle, e.Department)
		}
	}
	mapping := BuildMapping(table, votes, titles)

	model, err := classifier.Train(ctx, mapping, p.Options)
	if err != nil {
		return artifact.Manifest{}, fmt.Errorf("train: %w", err)
	}
	manifest, err := p.Store.Publish(ctx, model)
	if err != nil {
		return artifact.Manifest{}, fmt.Errorf("publish: %w", err)
	}

	if p.Handle != nil {
		p.Handle.Swap(&artifact.Snapshot{Model: model, Manifest: manifest})
	}
	metrics.SetModelVersion(p.Store.Name(), manifest.Version)

	if p.Keep > 0 {
		if n, err := p.Store.Prune(ctx, p.Keep); err != nil {
			telemetry.Warn("retrain.prune_failed", map[string]any{"model": p.Store.Name(), "error": err})
		} else if n > 0 {
			telemetry.Debug("retrain.pruned", map[string]any{"model": p.Store.Name(), "deleted": n})
		}
	}
	return manifest, nil
}

// BuildMapping merges votes into the reference mapping. For every normalized
// title with feedback, skills up-voted by anyone holding that title are added
// and skills down-voted by anyone holding it are removed afterwards. Votes
// from employees without a title are ignored. Labels compare
// case-insensitively and the output lists are sorted.
func BuildMapping(table *reference.Table, votes []skills.LabeledVote, titles map[int64]string) map[string][]string {
	sets := make(map[string]map[string]string)
	for title, labels := range table.Mapping() {
		set := make(map[string]string, len(labels))
		for _, l := range labels {
			set[strings.ToLower(l)] = l
		}
		sets[title] = set
	}

	ups := make(map[string]map[string]string)
	downs := make(map[string]map[string]struct{})
	for _, v := range votes {
		title, ok := titles[v.EmployeeID]
		label := strings.TrimSpace(v.SkillLabel)
		if !ok || label == "" {
			continue
		}
		key := strings.ToLower(label)
		switch v.Vote {
		case skills.VoteUp:
			if ups[title] == nil {
				ups[title] = make(map[string]string)
			}
			ups[title][key] = label
		case skills.VoteDown:
			if downs[title] == nil {
				downs[title] = make(map[string]struct{})
			}
			downs[title][key] = struct{}{}
		}
	}

	for title, added := range ups {
		if sets[title] == nil {
			sets[title] = make(map[string]string)
		}
		for key, label := range added {
			if _, exists := sets[title][key]; !exists {
				sets[title][key] = label
			}
		}
	}
	for title, removed := range downs {
		if sets[title] == nil {
			sets[title] = make(map[string]string)
		}
		for key := range removed {
			delete(sets[title], key)
		}
	}

	out := make(map[string][]string, len(sets))
	for title, set := range sets {
		labels := make([]string, 0, len(set))
		for _, l := range set {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		out[title] = labels
	}
	return out
}
