package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		input string
		want  StringFormat
	}{
		{"ada@example.com", FormatEmail},
		{"https://example.com/a?b=c", FormatURL},
		{"ftp://example.com", FormatNone},
		{"1b4e28ba-2fa1-11d2-883f-0016d3cca427", FormatUUID},
		{"2024-03-01", FormatDate},
		{"2024-03-01T12:00:00Z", FormatDate},
		{"+1 (555) 010-9999", FormatPhone},
		{"12-34", FormatNone},
		{"hello world", FormatNone},
		{"", FormatNone},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat(tt.input))
		})
	}
}

func TestProfileString_Case(t *testing.T) {
	assert.Equal(t, CaseUpper, ProfileString("ACTIVE").Case)
	assert.Equal(t, CaseLower, ProfileString("active").Case)
	assert.Equal(t, CaseMixed, ProfileString("Active").Case)
	assert.Equal(t, CaseNone, ProfileString("12345").Case)
}

func TestProfileString_LongValuesOverflow(t *testing.T) {
	p := ProfileString(strings.Repeat("x", maxEnumValueLen+1))
	assert.True(t, p.Overflow)
	assert.Nil(t, p.Values)
}

func TestMergeProfiles_CaseJoin(t *testing.T) {
	upper := ProfileString("A")
	lower := ProfileString("b")
	digits := ProfileString("1")

	assert.Equal(t, CaseUpper, mergeProfiles(upper, digits, 10).Case)
	assert.Equal(t, CaseMixed, mergeProfiles(upper, lower, 10).Case)
	assert.Equal(t, CaseMixed, mergeProfiles(mergeProfiles(upper, digits, 10), lower, 10).Case)
}

func TestProfileSummary(t *testing.T) {
	p := mergeProfiles(ProfileString("OPEN"), ProfileString("OPEN"), 10)
	p = mergeProfiles(p, ProfileString("DONE"), 10)
	assert.Equal(t, "uppercase, enum(DONE|OPEN)", p.Summary())

	var nilProfile *StringProfile
	assert.Equal(t, "", nilProfile.Summary())
}
