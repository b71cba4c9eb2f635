package linker

import (
	"testing"

	"github.com/kokkai-archive/kokkaid/models"
)

func TestNormalizeCommitteeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "予算委員会", "予算委員会"},
		{"fullwidth ascii folded", "第２１１回", "第211回"},
		{"halfwidth katakana folded", "ﾃﾚﾋﾞ中継", "テレビ中継"},
		{"case folded", "NHK中継", "nhk中継"},
		{"whitespace collapsed", " 予算  委員会 ", "予算 委員会"},
		{"ideographic space collapsed", "予算　委員会", "予算 委員会"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeCommitteeName(tt.in); got != tt.want {
				t.Errorf("NormalizeCommitteeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestAliasTableCanonical(t *testing.T) {
	table := NewAliasTable("v2",
		map[string]string{"文科委員会": "文部科学委員会"},
		[]string{"（テレビ中継）"})

	tests := []struct {
		in   string
		want string
	}{
		{"文科委員会", "文部科学委員会"},
		{"予算委員会（テレビ中継）", "予算委員会"},
		{"文科委員会（テレビ中継）", "文部科学委員会"},
		{"予算委員会", "予算委員会"},
	}
	for _, tt := range tests {
		got := table.Canonical(NormalizeCommitteeName(tt.in))
		if got != NormalizeCommitteeName(tt.want) {
			t.Errorf("Canonical(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMatcherScore(t *testing.T) {
	m := Matcher{
		Aliases:        NewAliasTable("v1", map[string]string{"文科委員会": "文部科学委員会"}, []string{"（テレビ中継）"}),
		FuzzyThreshold: 2,
	}

	tests := []struct {
		name     string
		a, b     string
		wantTier models.ConfidenceTier
		wantOK   bool
	}{
		{"identical", "予算委員会", "予算委員会", models.TierExact, true},
		{"width variants are exact", "第２委員会", "第2委員会", models.TierExact, true},
		{"suffix strip is alias tier", "予算委員会", "予算委員会（テレビ中継）", models.TierAlias, true},
		{"alias entry", "文部科学委員会", "文科委員会", models.TierAlias, true},
		{"substring", "安全保障委員会", "安全保障", models.TierFuzzy, true},
		{"edit distance within threshold", "厚生労働委員会", "厚生労働委員", models.TierFuzzy, true},
		{"unrelated", "予算委員会", "本会議", "", false},
		{"empty never matches", "", "予算委員会", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tier, ok := m.Score(tt.a, tt.b)
			if ok != tt.wantOK || tier != tt.wantTier {
				t.Errorf("Score(%q, %q) = (%q, %v), want (%q, %v)", tt.a, tt.b, tier, ok, tt.wantTier, tt.wantOK)
			}
		})
	}
}

func TestMatcherZeroThresholdDisablesDistance(t *testing.T) {
	m := Matcher{Aliases: NewAliasTable("", nil, nil), FuzzyThreshold: 0}
	if _, ok := m.Score("厚生労働委員会", "厚生労働委A会"); ok {
		t.Error("distance matching should be off at threshold 0")
	}
}

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"予算委員会", "予算委員会", 0},
		{"予算委員会", "予算委員", 1},
		{"文部科学委員会", "文科委員会", 2},
	}
	for _, tt := range tests {
		if got := editDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("editDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
