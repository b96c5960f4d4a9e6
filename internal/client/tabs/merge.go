package tabs

import (
	"cmp"
	"slices"

	"github.com/Sadman-Ilham/opencrvs-core/internal/client/models"
)

// Merged is one tab as shown to the user.
type Merged struct {
	// Results are the server rows left after filtering.
	Results []*models.TabRow `json:"results"`
	// Local are the device's declarations that belong to the tab.
	Local      []models.Declaration `json:"local"`
	TotalItems int                  `json:"totalItems"`
}

// Merge combines the last server page of tab with the local snapshot.
//
// Server rows are dropped when they are null, carry no id, repeat an
// earlier row, or belong to any local declaration: the local copy is
// fresher than the server echo. The total is the server total minus the
// dropped rows plus the local declarations of the tab, and never less
// than the number of entries shown.
//
// page may be nil when the tab was never fetched. Merge does not modify
// its inputs.
func Merge(tab Tab, page *models.TabPage, snapshot []models.Declaration, mapping Mapping) Merged {
	localIDs := make(map[string]struct{}, len(snapshot))
	local := make([]models.Declaration, 0)
	for _, d := range snapshot {
		localIDs[d.ID] = struct{}{}
		if t, ok := mapping.TabOf(d); ok && t == tab {
			local = append(local, d.Clone())
		}
	}
	slices.SortFunc(local, func(a, b models.Declaration) int {
		if c := b.ModifiedOn.Compare(a.ModifiedOn); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	serverTotal := 0
	var rows []*models.TabRow
	if page != nil {
		serverTotal = page.TotalItems
		rows = page.Results
	}

	results := make([]*models.TabRow, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	removed := 0
	for _, row := range rows {
		if row == nil || row.ID == "" {
			removed++
			continue
		}
		if _, dup := seen[row.ID]; dup {
			removed++
			continue
		}
		seen[row.ID] = struct{}{}
		if _, isLocal := localIDs[row.ID]; isLocal {
			removed++
			continue
		}
		copied := *row
		results = append(results, &copied)
	}

	total := serverTotal - removed + len(local)
	total = max(total, len(results)+len(local), 0)

	return Merged{Results: results, Local: local, TotalItems: total}
}
