package tabs

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sadman-Ilham/opencrvs-core/internal/client/models"
)

func decl(id string, s models.Status) models.Declaration {
	d := models.NewDeclaration(id, models.EventBirth, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	d.Status = s
	return d
}

func rowIDs(rows []*models.TabRow) []string {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestMerge_LocalDraftHidesServerEcho(t *testing.T) {
	page := &models.TabPage{
		Results:    []*models.TabRow{{ID: "A"}, {ID: "B"}},
		TotalItems: 2,
	}
	got := Merge(InProgress, page, []models.Declaration{decl("A", models.StatusDraft)}, Table)

	assert.Equal(t, []string{"B"}, rowIDs(got.Results))
	require.Len(t, got.Local, 1)
	assert.Equal(t, "A", got.Local[0].ID)
	assert.Equal(t, 2, got.TotalItems)
}

func TestMerge_CountsLocalAndRemote(t *testing.T) {
	page := &models.TabPage{TotalItems: 5}
	for i := range 5 {
		page.Results = append(page.Results, &models.TabRow{ID: fmt.Sprintf("remote-%d", i)})
	}
	got := Merge(InProgress, page, []models.Declaration{decl("local", models.StatusDraft)}, Table)

	assert.Len(t, got.Results, 5)
	assert.Equal(t, 6, got.TotalItems)
}

func TestMerge_EmptyPageShowsLocal(t *testing.T) {
	snapshot := []models.Declaration{
		decl("A", models.StatusDraft),
		decl("B", models.StatusSubmitting),
		decl("C", models.StatusRegistered),
	}

	got := Merge(InProgress, &models.TabPage{}, snapshot, Table)
	assert.Empty(t, got.Results)
	assert.Len(t, got.Local, 2)
	assert.Equal(t, 2, got.TotalItems)

	never := Merge(Print, nil, snapshot, Table)
	assert.Equal(t, 1, never.TotalItems)
}

func TestMerge_DropsNullsAndRowsWithoutID(t *testing.T) {
	page := &models.TabPage{
		Results:    []*models.TabRow{nil, {ID: ""}, {ID: "B"}, {ID: "B"}},
		TotalItems: 4,
	}
	got := Merge(Review, page, nil, Table)

	assert.Equal(t, []string{"B"}, rowIDs(got.Results))
	assert.Equal(t, 1, got.TotalItems)
}

func TestMerge_DropsRowsOfLocalDeclarationsInOtherTabs(t *testing.T) {
	// A was just registered locally; the review page still lists it.
	page := &models.TabPage{Results: []*models.TabRow{{ID: "A"}, {ID: "B"}}, TotalItems: 2}
	snapshot := []models.Declaration{decl("A", models.StatusRegistered)}

	review := Merge(Review, page, snapshot, Table)
	assert.Equal(t, []string{"B"}, rowIDs(review.Results))
	assert.Empty(t, review.Local)
	assert.Equal(t, 1, review.TotalItems)

	printTab := Merge(Print, &models.TabPage{}, snapshot, Table)
	require.Len(t, printTab.Local, 1)
	assert.Equal(t, "A", printTab.Local[0].ID)
}

func TestMerge_NeverNegative(t *testing.T) {
	page := &models.TabPage{Results: []*models.TabRow{{ID: "A"}, {ID: "B"}}, TotalItems: 0}
	got := Merge(InProgress, page, []models.Declaration{decl("A", models.StatusDraft)}, Table)
	assert.Equal(t, 2, got.TotalItems)

	got = Merge(InProgress, &models.TabPage{TotalItems: -3}, nil, Table)
	assert.Equal(t, 0, got.TotalItems)
}

func TestMerge_DoesNotAliasInputs(t *testing.T) {
	row := &models.TabRow{ID: "B", Name: "Ada"}
	page := &models.TabPage{Results: []*models.TabRow{row}, TotalItems: 1}
	got := Merge(Review, page, nil, Table)
	got.Results[0].Name = "changed"
	assert.Equal(t, "Ada", row.Name)
}

func TestMerge_FailedDeclarationsStayInTheirTab(t *testing.T) {
	d := decl("A", models.StatusFailedNetwork)
	d.LastAction = models.StatusRegistering
	got := Merge(Review, nil, []models.Declaration{d}, Table)
	require.Len(t, got.Local, 1)

	f := decl("B", models.StatusFailed)
	tab, ok := Table.TabOf(f)
	require.True(t, ok)
	assert.Equal(t, InProgress, tab)
}

func TestTable_SubmittedStaysInProgress(t *testing.T) {
	tab, ok := Table.TabOf(decl("A", models.StatusSubmitted))
	require.True(t, ok)
	assert.Equal(t, InProgress, tab)

	for s, tab := range Table {
		assert.NotEqual(t, Notification, tab, "local status %s", s)
	}
}

// Randomised inputs: results are unique, totals bound the shown entries,
// and merging twice gives the same answer.
func TestMerge_Invariants(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	statuses := models.AllStatuses

	for iter := range 500 {
		var snapshot []models.Declaration
		for i := range r.IntN(6) {
			d := decl(fmt.Sprintf("id-%d", r.IntN(10)+i*10), statuses[r.IntN(len(statuses))])
			d.LastAction = models.StatusSubmitting
			snapshot = append(snapshot, d)
		}
		page := &models.TabPage{TotalItems: r.IntN(20) - 5}
		for range r.IntN(8) {
			if r.IntN(6) == 0 {
				page.Results = append(page.Results, nil)
				continue
			}
			page.Results = append(page.Results, &models.TabRow{ID: fmt.Sprintf("id-%d", r.IntN(60))})
		}

		for _, tab := range All {
			first := Merge(tab, page, snapshot, Table)
			second := Merge(tab, page, snapshot, Table)
			require.Empty(t, cmp.Diff(first, second), "iteration %d tab %s", iter, tab)

			seen := map[string]bool{}
			for _, row := range first.Results {
				require.NotNil(t, row)
				require.False(t, seen[row.ID], "duplicate %s", row.ID)
				seen[row.ID] = true
			}
			for _, d := range first.Local {
				require.False(t, seen[d.ID], "local %s also listed as remote", d.ID)
			}
			require.GreaterOrEqual(t, first.TotalItems, len(first.Results)+len(first.Local))
			require.GreaterOrEqual(t, first.TotalItems, 0)
		}
	}
}

func TestServerStatuses(t *testing.T) {
	assert.Equal(t, []models.RegStatus{models.RegDeclared, models.RegValidated}, ServerStatuses(Review, true))
	assert.Equal(t, []models.RegStatus{models.RegDeclared}, ServerStatuses(Review, false))
	assert.Equal(t, []models.RegStatus{models.RegInProgress}, ServerStatuses(InProgress, true))
	assert.Equal(t, []models.RegStatus{models.RegRegistered}, ServerStatuses(Print, false))
	assert.Equal(t, []models.RegStatus{models.RegIncomplete}, ServerStatuses(Notification, false))
	assert.True(t, Notification.Valid())
	assert.Nil(t, ServerStatuses(Tab("archive"), true))
	assert.True(t, Reject.Valid())
	assert.False(t, Tab("archive").Valid())
}
