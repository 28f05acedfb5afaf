package domain

// Category classifies an evidence window. The enumeration is fixed; the
// declaration order is the priority order used when the prompt budget forces
// windows to be dropped (lower ordinal = higher priority).
type Category int

const (
	// CategoryCompileError covers compiler diagnostics ("error:", fatal errors).
	CategoryCompileError Category = iota

	// CategoryLinkMissingDependency covers missing libraries ("cannot find -lfoo").
	CategoryLinkMissingDependency

	// CategoryLinkUndefinedReference covers unresolved symbols at link time.
	CategoryLinkUndefinedReference

	// CategoryLicenseMatch covers license-scanner matches in source files.
	CategoryLicenseMatch

	// CategoryOther is the catch-all for unclassified indicators.
	CategoryOther
)

// categoryNames maps categories to their wire/reporting names.
var categoryNames = map[Category]string{
	CategoryCompileError:           "compile-error",
	CategoryLinkMissingDependency:  "link-missing-dependency",
	CategoryLinkUndefinedReference: "link-undefined-reference",
	CategoryLicenseMatch:           "license-match",
	CategoryOther:                  "other",
}

// String returns the reporting name of the category.
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "other"
}

// ParseCategory resolves a reporting name back to a Category.
// Unknown names map to CategoryOther.
func ParseCategory(name string) Category {
	for c, n := range categoryNames {
		if n == name {
			return c
		}
	}
	return CategoryOther
}

// Priority returns the budget priority of the category. Smaller values are
// included in the prompt first.
func (c Category) Priority() int {
	return int(c)
}
