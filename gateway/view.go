package gateway

import (
	"sort"
	"strings"

	"github.com/screwyforcepush/daily-shit-list/domain"
)

// View is the read-only projection served to dashboards: tasks grouped by
// project, in-flight work first, plus per-status counts. It is recomputed on
// every read and never persisted.
type View struct {
	Projects []ProjectGroup `json:"projects"`
	Summary  Summary        `json:"summary"`
}

// ProjectGroup is one project bucket in the view.
type ProjectGroup struct {
	Project string        `json:"project"`
	Tasks   []domain.Task `json:"tasks"`
}

// Summary carries the per-status counts across all projects.
type Summary struct {
	Planned int `json:"planned"`
	Active  int `json:"active"`
	Blocked int `json:"blocked"`
	Done    int `json:"done"`
	Total   int `json:"total"`
}

// BuildView projects the task collection into the aggregate view. Projects
// are keyed case-insensitively and ordered alphabetically; within a project
// tasks sort active, blocked, planned, done, ties broken by creation time.
func BuildView(tasks []domain.Task) View {
	groups := make(map[string]*ProjectGroup)
	var keys []string
	var summary Summary
	for _, t := range tasks {
		key := t.ProjectKey()
		group, ok := groups[key]
		if !ok {
			group = &ProjectGroup{Project: t.Project}
			groups[key] = group
			keys = append(keys, key)
		}
		group.Tasks = append(group.Tasks, t)

		switch t.Status {
		case domain.StatusPlanned:
			summary.Planned++
		case domain.StatusActive:
			summary.Active++
		case domain.StatusBlocked:
			summary.Blocked++
		case domain.StatusDone:
			summary.Done++
		}
		summary.Total++
	}

	sort.Strings(keys)
	out := View{Projects: make([]ProjectGroup, 0, len(keys)), Summary: summary}
	for _, key := range keys {
		group := groups[key]
		sort.SliceStable(group.Tasks, func(i, j int) bool {
			a, b := group.Tasks[i], group.Tasks[j]
			if a.Status.Rank() != b.Status.Rank() {
				return a.Status.Rank() < b.Status.Rank()
			}
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return strings.Compare(a.ID, b.ID) < 0
		})
		out.Projects = append(out.Projects, *group)
	}
	return out
}
