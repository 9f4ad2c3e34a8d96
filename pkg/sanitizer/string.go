package sanitizer

import "strings"

// collapseSpace trims s and folds every run of Unicode whitespace into a
// single ASCII space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var singleLine = Pipeline{dropControl, collapseSpace}

// CollapseSpace is for short single-line input such as search terms.
func CollapseSpace(s string) string {
	return collapseSpace(s)
}

func NormalizeName(name string) string {
	return singleLine.Apply(name)
}

func NormalizeTitle(title string) string {
	return singleLine.Apply(title)
}

func NormalizeLocation(location string) string {
	return singleLine.Apply(location)
}
