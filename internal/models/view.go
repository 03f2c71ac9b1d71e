package models

import (
	"fmt"
	"strings"
)

// ClassFilter restricts the table to one classification, or none
type ClassFilter string

const (
	FilterAll       ClassFilter = "all"
	FilterGuardians ClassFilter = "guardians"
	FilterAllies    ClassFilter = "allies"
	FilterEnemies   ClassFilter = "enemies"
)

// Matches reports whether a record of class c passes the filter
func (f ClassFilter) Matches(c Classification) bool {
	if f == FilterAll || f == "" {
		return true
	}
	return string(f) == string(c)
}

// ParseClassFilter accepts the filter names case-insensitively
func ParseClassFilter(s string) (ClassFilter, error) {
	switch ClassFilter(strings.ToLower(strings.TrimSpace(s))) {
	case FilterAll:
		return FilterAll, nil
	case FilterGuardians:
		return FilterGuardians, nil
	case FilterAllies:
		return FilterAllies, nil
	case FilterEnemies:
		return FilterEnemies, nil
	}
	return "", fmt.Errorf("%w: unknown class filter %q", ErrInvalidArgument, s)
}

// SortColumn names a sortable field of ProjectedRow
type SortColumn string

const (
	SortByPID    SortColumn = "pid"
	SortByName   SortColumn = "name"
	SortByCPU    SortColumn = "cpu"
	SortByMemory SortColumn = "memory"
)

func ParseSortColumn(s string) (SortColumn, error) {
	switch SortColumn(strings.ToLower(strings.TrimSpace(s))) {
	case SortByPID:
		return SortByPID, nil
	case SortByName:
		return SortByName, nil
	case SortByCPU, "cpu_percent":
		return SortByCPU, nil
	case SortByMemory, "mem", "rss":
		return SortByMemory, nil
	}
	return "", fmt.Errorf("%w: unknown sort column %q", ErrInvalidArgument, s)
}

type SortDirection string

const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

func ParseSortDirection(s string) (SortDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	}
	return "", fmt.Errorf("%w: unknown sort direction %q", ErrInvalidArgument, s)
}

// SortSpec is an active (column, direction) pair
type SortSpec struct {
	Column    SortColumn    `json:"column"`
	Direction SortDirection `json:"direction"`
}

// ViewState holds the user-controlled axes of the table. Nil Sort keeps pid
// order; nil SelectedPID means nothing is selected.
type ViewState struct {
	SearchText  string      `json:"search_text"`
	ClassFilter ClassFilter `json:"class_filter"`
	Sort        *SortSpec   `json:"sort,omitempty"`
	SelectedPID *int32      `json:"selected_pid,omitempty"`
}

// Clone returns a deep copy so the result shares no pointers with v
func (v ViewState) Clone() ViewState {
	out := v
	if v.Sort != nil {
		s := *v.Sort
		out.Sort = &s
	}
	if v.SelectedPID != nil {
		pid := *v.SelectedPID
		out.SelectedPID = &pid
	}
	return out
}

// DefaultViewState is the state of a freshly opened monitor
func DefaultViewState() ViewState {
	return ViewState{ClassFilter: FilterAll}
}
