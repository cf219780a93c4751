package models

import (
	"strings"

	"github.com/samber/lo"
)

// UntaggedLabel is the tag used for uniqueness checks when none was given
const UntaggedLabel = "untagged"

// CountTagMatches counts the records whose tag equals tag, ignoring case.
// Records without a tag never match.
func CountTagMatches(tag string, records []DeploymentRecord) int {
	return lo.CountBy(records, func(r DeploymentRecord) bool {
		return r.Tag != "" && strings.EqualFold(r.Tag, tag)
	})
}
