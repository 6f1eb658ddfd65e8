package api

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"

	"github.com/samber/lo"
)

// ComponentRow is one submitted component line of a report. A nil field was not submitted.
type ComponentRow struct {
	ComponentID *string
	Reason      *string
	Department  *string
	Action      *string
	Priority    *string
	Description *string
	Status      *string
}

// componentFields lists the per-row field names in form order
var componentFields = []string{
	"component_id", "reason", "department", "action", "priority", "description", "status",
}

var nestedComponentKey = regexp.MustCompile(`^components\[(\d+)\]\[([A-Za-z_]+)\]$`)

func (r *ComponentRow) set(field string, value *string) bool {
	switch field {
	case "component_id":
		r.ComponentID = value
	case "reason":
		r.Reason = value
	case "department":
		r.Department = value
	case "action":
		r.Action = value
	case "priority":
		r.Priority = value
	case "description":
		r.Description = value
	case "status":
		r.Status = value
	default:
		return false
	}
	return true
}

// ParseComponentRows extracts the component rows of a report form.
//
// Array style (`component_id[]=1&component_id[]=2&reason[]=A`, or the bare
// field names) is tried first and zipped positionally; a shorter array leaves
// the trailing rows' field nil. Nested style
// (`components[0][component_id]=1`) is the fallback, ordered by index, with
// only the submitted keys set. The two styles are never merged. A form with
// neither yields an empty slice.
func ParseComponentRows(form url.Values) []ComponentRow {
	if rows, ok := parseArrayStyle(form); ok {
		return rows
	}
	return parseNestedStyle(form)
}

func parseArrayStyle(form url.Values) ([]ComponentRow, bool) {
	columns := lo.Associate(componentFields, func(field string) (string, []string) {
		if values, ok := form[field+"[]"]; ok {
			return field, values
		}
		return field, form[field]
	})

	count := lo.Max(lo.Map(componentFields, func(field string, _ int) int {
		return len(columns[field])
	}))
	if count == 0 {
		return nil, false
	}

	rows := make([]ComponentRow, count)
	for _, field := range componentFields {
		for i, v := range columns[field] {
			value := v
			rows[i].set(field, &value)
		}
	}
	return rows, true
}

func parseNestedStyle(form url.Values) []ComponentRow {
	byIndex := make(map[int]*ComponentRow)
	for key, values := range form {
		m := nestedComponentKey.FindStringSubmatch(key)
		if m == nil || len(values) == 0 {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		row, ok := byIndex[idx]
		if !ok {
			row = &ComponentRow{}
		}
		value := values[0]
		if row.set(m[2], &value) {
			byIndex[idx] = row
		}
	}

	indexes := lo.Keys(byIndex)
	sort.Ints(indexes)

	rows := make([]ComponentRow, 0, len(indexes))
	for _, idx := range indexes {
		rows = append(rows, *byIndex[idx])
	}
	return rows
}
