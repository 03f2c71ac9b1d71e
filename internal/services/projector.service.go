package services

import (
	"cmp"
	"slices"
	"strings"

	"guardians/internal/models"
)

// Project derives the visible rows and the resolved selection from one
// snapshot and one view state. It has no side effects: the selected pid is
// reported as unresolved when it is filtered out or gone, never cleared.
func Project(snap *models.ProcessSnapshot, view models.ViewState) models.Projection {
	query := strings.ToLower(view.SearchText)

	rows := make([]models.ProjectedRow, 0, snap.Len())
	for i := range snap.Len() {
		row := NewProjectedRow(snap.At(i))
		if !strings.Contains(strings.ToLower(row.DisplayName), query) {
			continue
		}
		if !view.ClassFilter.Matches(row.Classification) {
			continue
		}
		rows = append(rows, row)
	}

	if view.Sort != nil {
		sortRows(rows, *view.Sort)
	}

	proj := models.Projection{
		Rows:          rows,
		SelectedIndex: -1,
		View:          view.Clone(),
		Total:         snap.Len(),
		TakenAt:       snap.TakenAt(),
	}
	if view.SelectedPID != nil {
		pid := *view.SelectedPID
		if idx := slices.IndexFunc(rows, func(r models.ProjectedRow) bool { return r.PID == pid }); idx >= 0 {
			proj.Resolved = true
			proj.SelectedIndex = idx
		}
	}
	return proj
}

// sortRows orders rows by spec. Rows arrive in ascending pid order and the
// sort is stable, so equal keys stay pid-ascending in both directions.
func sortRows(rows []models.ProjectedRow, spec models.SortSpec) {
	key := compareBy(spec.Column)
	if key == nil {
		return
	}
	desc := spec.Direction == models.Descending
	slices.SortStableFunc(rows, func(a, b models.ProjectedRow) int {
		c := key(a, b)
		if desc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.PID, b.PID)
	})
}

func compareBy(col models.SortColumn) func(a, b models.ProjectedRow) int {
	switch col {
	case models.SortByPID:
		return func(a, b models.ProjectedRow) int { return cmp.Compare(a.PID, b.PID) }
	case models.SortByName:
		return func(a, b models.ProjectedRow) int {
			return strings.Compare(strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName))
		}
	case models.SortByCPU:
		return func(a, b models.ProjectedRow) int { return cmp.Compare(a.CPUPercent, b.CPUPercent) }
	case models.SortByMemory:
		return func(a, b models.ProjectedRow) int { return cmp.Compare(a.ResidentMemory, b.ResidentMemory) }
	}
	return nil
}
