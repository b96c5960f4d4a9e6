// Package projection derives the per-tab view from the registry snapshot
// and the last reconciled server pages. It performs no I/O.
package projection

import (
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/models"
	"github.com/Sadman-Ilham/opencrvs-core/internal/client/tabs"
)

// View holds one entry for every tab, empty tabs included.
type View map[tabs.Tab]tabs.Merged

// Project builds the view using the default status to tab table.
func Project(snapshot []models.Declaration, last map[tabs.Tab]*models.TabPage) View {
	return ProjectWith(tabs.Table, snapshot, last)
}

// ProjectWith builds the view using mapping. The same inputs always give
// the same view.
func ProjectWith(mapping tabs.Mapping, snapshot []models.Declaration, last map[tabs.Tab]*models.TabPage) View {
	view := make(View, len(tabs.All))
	for _, tab := range tabs.All {
		view[tab] = tabs.Merge(tab, last[tab], snapshot, mapping)
	}
	return view
}

// Counts returns the total of each tab, as shown on the tab labels.
func (v View) Counts() map[tabs.Tab]int {
	out := make(map[tabs.Tab]int, len(v))
	for tab, m := range v {
		out[tab] = m.TotalItems
	}
	return out
}

// Contains reports whether id is listed in tab, locally or remotely.
func (v View) Contains(tab tabs.Tab, id string) bool {
	m := v[tab]
	for _, d := range m.Local {
		if d.ID == id {
			return true
		}
	}
	for _, r := range m.Results {
		if r.ID == id {
			return true
		}
	}
	return false
}
