// Package version implements the semantic-version algebra used to decide
// whether a version update is breaking and whether it satisfies a set of
// dependency constraints.
//
// Parsing and comparison follow semver precedence exactly: numeric
// identifiers in a pre-release compare numerically, alphanumeric
// identifiers compare lexically, and a shorter pre-release field list is
// lower precedence than a longer one sharing the same prefix.
package version

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kadirpekel/coderkernel/pkg/kernelerr"
)

// Version is a parsed MAJOR.MINOR.PATCH[-pre][+build] value.
type Version struct {
	Major, Minor, Patch int
	Pre                 string // dot-separated pre-release identifiers, "" if absent
	Build               string // build metadata, ignored by comparison
}

func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Pre != "" {
		s += "-" + v.Pre
	}
	if v.Build != "" {
		s += "+" + v.Build
	}
	return s
}

// Parse parses a semantic version string. Build metadata (after '+') is
// retained but never affects comparison.
func Parse(s string) (Version, error) {
	op := "version.Parse"
	orig := s
	var build string
	if i := strings.IndexByte(s, '+'); i >= 0 {
		build = s[i+1:]
		s = s[:i]
	}
	var pre string
	if i := strings.IndexByte(s, '-'); i >= 0 {
		pre = s[i+1:]
		s = s[:i]
	}
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, kernelerr.Wrap(op, kernelerr.ValidationError, fmt.Errorf("%q: expected MAJOR.MINOR.PATCH", orig))
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, kernelerr.Wrap(op, kernelerr.ValidationError, fmt.Errorf("%q: invalid numeric component %q", orig, p))
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2], Pre: pre, Build: build}, nil
}

// MustParse is Parse but panics on error; intended for constants and tests.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare returns -1, 0, or 1 per semver precedence rules (build metadata
// is excluded from comparison entirely).
func Compare(a, b Version) int {
	if a.Major != b.Major {
		return cmpInt(a.Major, b.Major)
	}
	if a.Minor != b.Minor {
		return cmpInt(a.Minor, b.Minor)
	}
	if a.Patch != b.Patch {
		return cmpInt(a.Patch, b.Patch)
	}
	return comparePre(a.Pre, b.Pre)
}

// Less reports whether a < b.
func Less(a, b Version) bool { return Compare(a, b) < 0 }

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// comparePre implements semver precedence for pre-release fields: no
// pre-release is higher precedence than having one; otherwise compare
// dot-separated identifiers left to right, numeric-before-alphanumeric,
// and a prefix is lower precedence than its longer superset.
func comparePre(a, b string) int {
	if a == "" && b == "" {
		return 0
	}
	if a == "" {
		return 1 // a (no pre-release) has higher precedence
	}
	if b == "" {
		return -1
	}
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		ai, aErr := strconv.Atoi(as[i])
		bi, bErr := strconv.Atoi(bs[i])
		switch {
		case aErr == nil && bErr == nil:
			if ai != bi {
				return cmpInt(ai, bi)
			}
		case aErr == nil:
			return -1 // numeric identifiers have lower precedence than alphanumeric
		case bErr == nil:
			return 1
		default:
			if as[i] != bs[i] {
				return strings.Compare(as[i], bs[i])
			}
		}
	}
	return cmpInt(len(as), len(bs))
}

// IsBreakingChange reports whether moving from oldV to newV is a breaking
// change: major differs, with the convention that for a 0.x release the
// minor component is treated as the major component (so 0.1.0 -> 0.2.0 is
// breaking, but 0.1.0 -> 0.1.1 is not). Symmetric: IsBreakingChange(a,b) ==
// IsBreakingChange(b,a).
func IsBreakingChange(oldV, newV Version) bool {
	if oldV.Major != 0 || newV.Major != 0 {
		return oldV.Major != newV.Major
	}
	return oldV.Minor != newV.Minor
}

// Constraint is a parsed version-range requirement, e.g. "^1.2.3".
type Constraint struct {
	op string // "=", "^", "~", ">="
	v  Version
}

// ParseConstraint parses a constraint string. A bare "X.Y.Z" (no operator)
// is treated as an exact-match constraint, equivalent to "=X.Y.Z".
func ParseConstraint(s string) (Constraint, error) {
	op := "version.ParseConstraint"
	s = strings.TrimSpace(s)
	for _, prefix := range []string{">=", "^", "~", "="} {
		if strings.HasPrefix(s, prefix) {
			v, err := Parse(strings.TrimPrefix(s, prefix))
			if err != nil {
				return Constraint{}, kernelerr.Wrap(op, kernelerr.ValidationError, err)
			}
			return Constraint{op: prefix, v: v}, nil
		}
	}
	v, err := Parse(s)
	if err != nil {
		return Constraint{}, kernelerr.Wrap(op, kernelerr.ValidationError, err)
	}
	return Constraint{op: "=", v: v}, nil
}

func (c Constraint) String() string {
	if c.op == "=" {
		return c.v.String()
	}
	return c.op + c.v.String()
}

// Satisfies reports whether v satisfies the constraint.
func (c Constraint) Satisfies(v Version) bool {
	switch c.op {
	case "=":
		return Compare(v, c.v) == 0
	case ">=":
		return Compare(v, c.v) >= 0
	case "^":
		upper := Version{Major: c.v.Major + 1}
		if c.v.Major == 0 {
			// ^0.Y.Z allows patch-level changes only when Y==0, else minor-level.
			if c.v.Minor == 0 {
				upper = Version{Major: 0, Minor: 0, Patch: c.v.Patch + 1}
			} else {
				upper = Version{Major: 0, Minor: c.v.Minor + 1}
			}
		}
		return Compare(v, c.v) >= 0 && Compare(v, upper) < 0
	case "~":
		upper := Version{Major: c.v.Major, Minor: c.v.Minor + 1}
		return Compare(v, c.v) >= 0 && Compare(v, upper) < 0
	default:
		return false
	}
}

// ValidateUpdate reports whether newV satisfies every given constraint
// string. A malformed constraint is treated as unsatisfied rather than
// raising a parse error, since constraint sets are typically validated at
// registration time.
func ValidateUpdate(newV Version, constraints []string) bool {
	for _, cs := range constraints {
		c, err := ParseConstraint(cs)
		if err != nil {
			return false
		}
		if !c.Satisfies(newV) {
			return false
		}
	}
	return true
}
