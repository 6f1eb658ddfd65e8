package models

import "strings"

// Option is one selectable dropdown entry. Key is what gets stored,
// Default is the English label.
type Option struct {
	Key     string
	Default string
}

// OptionSet is an immutable list of options of one kind
type OptionSet struct {
	kind    string
	options []Option
}

// Kind returns the set name, e.g. "reasons"
func (s OptionSet) Kind() string {
	return s.kind
}

// Options returns a copy of the entries in display order
func (s OptionSet) Options() []Option {
	out := make([]Option, len(s.options))
	copy(out, s.options)
	return out
}

// Normalize maps a submitted value to its stored key. Both the full key
// ("reasons.wrong_part") and the bare suffix ("wrong_part") are accepted.
func (s OptionSet) Normalize(value string) (string, bool) {
	value = strings.TrimSpace(value)
	for _, o := range s.options {
		if value == o.Key || s.kind+"."+value == o.Key {
			return o.Key, true
		}
	}
	return "", false
}

// Label returns the display label for a stored key, or the key itself when unknown
func (s OptionSet) Label(key string) string {
	for _, o := range s.options {
		if o.Key == key {
			return o.Default
		}
	}
	return key
}

func newOptionSet(kind string, options ...Option) OptionSet {
	return OptionSet{kind: kind, options: options}
}

var (
	reasonOptions = newOptionSet("reasons",
		Option{"reasons.missing_components", "Missing Components"},
		Option{"reasons.wrong_part", "Wrong Part"},
		Option{"reasons.damaged_materials", "Damaged Materials"},
		Option{"reasons.programming_issue", "Automation-Software"},
		Option{"reasons.design_issue", "Design Issue"},
	)

	departmentOptions = newOptionSet("department",
		Option{"department.sales", "Sales"},
		Option{"department.design", "Design"},
		Option{"department.method", "Method"},
		Option{"department.purchase", "Purchase"},
		Option{"department.manufacturing", "Manufacturing"},
		Option{"department.warehouse", "Warehouse"},
		Option{"department.quality", "Quality"},
		Option{"department.shipment", "Shipment"},
		Option{"department.automation", "Automation"},
		Option{"department.electronics", "Electronics"},
		Option{"department.international_assembly_electronics", "International Assembly Electronics"},
		Option{"department.international_assembly_mechanics", "International Assembly Mechanics"},
	)

	actionOptions = newOptionSet("action",
		Option{"action.1", "Send Parts"},
		Option{"action.2", "Fix On-spot"},
		Option{"action.3", "Customer Support"},
		Option{"action.4", "Software Revision"},
	)

	priorityOptions = newOptionSet("priority",
		Option{"priority.low", "Low"},
		Option{"priority.normal", "Normal"},
		Option{"priority.high", "High"},
	)
)

// Reasons returns the problem reason options
func Reasons() OptionSet { return reasonOptions }

// Departments returns the responsible department options
func Departments() OptionSet { return departmentOptions }

// Actions returns the corrective action options
func Actions() OptionSet { return actionOptions }

// Priorities returns the priority options
func Priorities() OptionSet { return priorityOptions }
