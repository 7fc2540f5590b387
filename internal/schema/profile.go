package schema

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// StringFormat is a recognizable shape shared by every string at a path.
type StringFormat string

const (
	FormatNone  StringFormat = ""
	FormatEmail StringFormat = "email"
	FormatURL   StringFormat = "url"
	FormatUUID  StringFormat = "uuid"
	FormatDate  StringFormat = "date"
	FormatPhone StringFormat = "phone"
)

// StringCase describes the letter case used by every string at a path.
type StringCase string

const (
	CaseNone  StringCase = "" // no letters seen
	CaseUpper StringCase = "uppercase"
	CaseLower StringCase = "lowercase"
	CaseMixed StringCase = "mixed"
)

// DefaultMaxDistinct caps the distinct values a profile tracks before it
// stops treating a field as enum-like.
const DefaultMaxDistinct = 20

const maxEnumValueLen = 64

// StringProfile summarizes the plain string values seen at one path.
//
// Format survives a merge only when both sides agree; Case is a join over
// none < upper|lower < mixed; Values is the full distinct set until it
// exceeds the cap, after which Overflow is set for good.
type StringProfile struct {
	Observed int
	Format   StringFormat
	Case     StringCase
	Values   []string
	Overflow bool
}

var (
	emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ().\-]{5,}[0-9]$`)
)

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// ProfileString builds the unit profile of one string.
func ProfileString(s string) *StringProfile {
	p := &StringProfile{
		Observed: 1,
		Format:   DetectFormat(s),
		Case:     detectCase(s),
	}
	if len(s) > maxEnumValueLen {
		p.Overflow = true
	} else {
		p.Values = []string{s}
	}
	return p
}

// DetectFormat recognizes a handful of common string shapes.
func DetectFormat(s string) StringFormat {
	switch {
	case s == "":
		return FormatNone
	case emailPattern.MatchString(s):
		return FormatEmail
	case isUUID(s):
		return FormatUUID
	case isURL(s):
		return FormatURL
	case isDate(s):
		return FormatDate
	case isPhone(s):
		return FormatPhone
	}
	return FormatNone
}

func isUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func isURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func isDate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func isPhone(s string) bool {
	if !phonePattern.MatchString(s) {
		return false
	}
	digits := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return digits >= 7 && digits <= 15
}

func detectCase(s string) StringCase {
	hasUpper, hasLower := false, false
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		}
	}
	switch {
	case hasUpper && hasLower:
		return CaseMixed
	case hasUpper:
		return CaseUpper
	case hasLower:
		return CaseLower
	}
	return CaseNone
}

func joinCase(a, b StringCase) StringCase {
	switch {
	case a == b:
		return a
	case a == CaseNone:
		return b
	case b == CaseNone:
		return a
	}
	return CaseMixed
}

// IsEnum reports whether the values look like a small closed set: nothing
// overflowed and at least one value repeated.
func (p *StringProfile) IsEnum() bool {
	return p != nil && !p.Overflow && len(p.Values) > 0 && p.Observed > len(p.Values)
}

// Clone returns a deep copy.
func (p *StringProfile) Clone() *StringProfile {
	if p == nil {
		return nil
	}
	out := *p
	if p.Values != nil {
		out.Values = append([]string(nil), p.Values...)
	}
	return &out
}

// mergeProfiles combines two profiles; maxDistinct bounds Values.
func mergeProfiles(a, b *StringProfile, maxDistinct int) *StringProfile {
	switch {
	case a == nil:
		return capProfile(b.Clone(), maxDistinct)
	case b == nil:
		return capProfile(a.Clone(), maxDistinct)
	}
	out := &StringProfile{
		Observed: a.Observed + b.Observed,
		Case:     joinCase(a.Case, b.Case),
		Overflow: a.Overflow || b.Overflow,
	}
	if a.Format == b.Format {
		out.Format = a.Format
	}
	if !out.Overflow {
		out.Values = unionSorted(a.Values, b.Values)
	}
	return capProfile(out, maxDistinct)
}

func capProfile(p *StringProfile, maxDistinct int) *StringProfile {
	if p != nil && len(p.Values) > maxDistinct {
		p.Values = nil
		p.Overflow = true
	}
	return p
}

func unionSorted(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		set[v] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Summary renders the profile as a short human-readable note.
func (p *StringProfile) Summary() string {
	if p == nil {
		return ""
	}
	var parts []string
	if p.Format != FormatNone {
		parts = append(parts, string(p.Format))
	}
	if p.Case != CaseNone {
		parts = append(parts, string(p.Case))
	}
	if p.IsEnum() {
		parts = append(parts, "enum("+strings.Join(p.Values, "|")+")")
	}
	return strings.Join(parts, ", ")
}
