package version_test

import (
	"testing"

	"github.com/kadirpekel/coderkernel/pkg/version"
)

func TestParseAndString(t *testing.T) {
	v, err := version.Parse("1.2.3-beta.1+build5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Major != 1 || v.Minor != 2 || v.Patch != 3 || v.Pre != "beta.1" || v.Build != "build5" {
		t.Fatalf("unexpected parse result: %+v", v)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, s := range []string{"1.2", "1.2.x", "", "1.2.3.4"} {
		if _, err := version.Parse(s); err == nil {
			t.Fatalf("expected error parsing %q", s)
		}
	}
}

func TestComparePrecedence(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "2.0.0", -1},
		{"2.0.0", "1.0.0", 1},
		{"1.0.0", "1.0.0", 0},
		{"1.0.0-alpha", "1.0.0", -1},
		{"1.0.0-alpha", "1.0.0-alpha.1", -1},
		{"1.0.0-alpha.1", "1.0.0-alpha.beta", -1},
		{"1.0.0-alpha.beta", "1.0.0-beta", -1},
	}
	for _, c := range cases {
		a, b := version.MustParse(c.a), version.MustParse(c.b)
		if got := version.Compare(a, b); got != c.want {
			t.Errorf("Compare(%s, %s) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestIsBreakingChangeSymmetric(t *testing.T) {
	cases := []struct{ a, b string }{
		{"1.0.0", "2.0.0"},
		{"1.0.0", "1.1.0"},
		{"0.1.0", "0.2.0"},
		{"0.1.0", "0.1.1"},
	}
	for _, c := range cases {
		a, b := version.MustParse(c.a), version.MustParse(c.b)
		ab := version.IsBreakingChange(a, b)
		ba := version.IsBreakingChange(b, a)
		if ab != ba {
			t.Errorf("IsBreakingChange(%s,%s)=%v but reverse=%v", c.a, c.b, ab, ba)
		}
	}
}

func TestIsBreakingChangeRules(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"1.0.0", "2.0.0", true},
		{"1.0.0", "1.9.0", false},
		{"0.1.0", "0.2.0", true},
		{"0.1.0", "0.1.9", false},
	}
	for _, c := range cases {
		got := version.IsBreakingChange(version.MustParse(c.a), version.MustParse(c.b))
		if got != c.want {
			t.Errorf("IsBreakingChange(%s,%s) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestConstraintSatisfies(t *testing.T) {
	cases := []struct {
		constraint, v string
		want          bool
	}{
		{"^1.0.0", "1.1.0", true},
		{"^1.0.0", "2.0.0", false},
		{"^1.0.0", "0.9.0", false},
		{"~1.2.0", "1.2.9", true},
		{"~1.2.0", "1.3.0", false},
		{">=1.0.0", "1.0.0", true},
		{">=1.0.0", "0.9.9", false},
		{"1.2.3", "1.2.3", true},
		{"=1.2.3", "1.2.4", false},
	}
	for _, c := range cases {
		con, err := version.ParseConstraint(c.constraint)
		if err != nil {
			t.Fatalf("ParseConstraint(%s): %v", c.constraint, err)
		}
		got := con.Satisfies(version.MustParse(c.v))
		if got != c.want {
			t.Errorf("%s.Satisfies(%s) = %v, want %v", c.constraint, c.v, got, c.want)
		}
	}
}

func TestValidateUpdateRequiresAllConstraints(t *testing.T) {
	ok := version.ValidateUpdate(version.MustParse("1.1.0"), []string{"^1.0.0", ">=1.0.0"})
	if !ok {
		t.Fatalf("expected 1.1.0 to satisfy both constraints")
	}
	ok = version.ValidateUpdate(version.MustParse("2.0.0"), []string{"^1.0.0"})
	if ok {
		t.Fatalf("expected 2.0.0 to violate ^1.0.0")
	}
}
