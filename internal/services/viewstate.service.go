package services

import (
	"sync"

	"guardians/internal/models"
)

// ViewStore owns the user-controlled view axes. Writers serialize on the
// lock and readers get a deep copy, so a projection pass never sees a
// half-applied update.
type ViewStore struct {
	mu      sync.RWMutex
	state   models.ViewState
	changed chan struct{}
}

func NewViewStore() *ViewStore {
	return &ViewStore{
		state:   models.DefaultViewState(),
		changed: make(chan struct{}, 1),
	}
}

// Snapshot returns a copy of the current view state
func (s *ViewStore) Snapshot() models.ViewState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Changed fires at least once after any number of updates
func (s *ViewStore) Changed() <-chan struct{} {
	return s.changed
}

func (s *ViewStore) update(fn func(*models.ViewState) bool) {
	s.mu.Lock()
	dirty := fn(&s.state)
	s.mu.Unlock()
	if !dirty {
		return
	}
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func (s *ViewStore) SetSearchText(text string) {
	s.update(func(v *models.ViewState) bool {
		if v.SearchText == text {
			return false
		}
		v.SearchText = text
		return true
	})
}

func (s *ViewStore) SetClassFilter(f models.ClassFilter) {
	s.update(func(v *models.ViewState) bool {
		if v.ClassFilter == f {
			return false
		}
		v.ClassFilter = f
		return true
	})
}

func (s *ViewStore) SetSort(column models.SortColumn, dir models.SortDirection) {
	s.update(func(v *models.ViewState) bool {
		v.Sort = &models.SortSpec{Column: column, Direction: dir}
		return true
	})
}

// ClearSort restores natural pid order
func (s *ViewStore) ClearSort() {
	s.update(func(v *models.ViewState) bool {
		if v.Sort == nil {
			return false
		}
		v.Sort = nil
		return true
	})
}

func (s *ViewStore) Select(pid int32) {
	s.update(func(v *models.ViewState) bool {
		if v.SelectedPID != nil && *v.SelectedPID == pid {
			return false
		}
		v.SelectedPID = &pid
		return true
	})
}

func (s *ViewStore) ClearSelection() {
	s.update(func(v *models.ViewState) bool {
		if v.SelectedPID == nil {
			return false
		}
		v.SelectedPID = nil
		return true
	})
}

// ClearSelectionIf clears the selection only while it still points at pid,
// so a newer user selection is never dropped by a late action result.
func (s *ViewStore) ClearSelectionIf(pid int32) bool {
	cleared := false
	s.update(func(v *models.ViewState) bool {
		if v.SelectedPID == nil || *v.SelectedPID != pid {
			return false
		}
		v.SelectedPID = nil
		cleared = true
		return true
	})
	return cleared
}
