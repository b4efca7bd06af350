package knowledge

import (
	"testing"

	"github.com/prahari-health/prahari/internal/model"
)

func TestAuthorityClassifier_KnownDomains(t *testing.T) {
	classifier := NewAuthorityClassifier()

	tests := []struct {
		name     string
		url      string
		expected int
		desc     string
	}{
		{
			name:     "World Health Organization",
			url:      "https://www.who.int/",
			expected: AuthorityPrimary,
			desc:     "WHO domain is primary",
		},
		{
			name:     "Indian Council of Medical Research",
			url:      "https://www.icmr.gov.in/",
			expected: AuthorityPrimary,
			desc:     "ICMR domain is primary",
		},
		{
			name:     "Ministry of Health & Family Welfare, India",
			url:      "https://mohfw.gov.in/",
			expected: AuthorityPrimary,
			desc:     "Health ministry domain is primary",
		},
		{
			name:     "National Institutes of Health",
			url:      "https://www.nih.gov/",
			expected: AuthoritySecondary,
			desc:     "Explicit NIH mapping beats the .gov heuristic",
		},
		{
			name:     "Indian Academy of Pediatrics",
			url:      "https://www.iapindia.org/",
			expected: AuthoritySecondary,
			desc:     "IAP domain is secondary",
		},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			result := classifier.Classify(tt.name, tt.url)
			if result != tt.expected {
				t.Errorf("Expected %d for %s, got %d", tt.expected, tt.url, result)
			}
		})
	}
}

func TestAuthorityClassifier_TLDHeuristics(t *testing.T) {
	classifier := NewAuthorityClassifier()

	tests := []struct {
		url      string
		expected int
		desc     string
	}{
		{
			url:      "https://health.gov/myhealthfinder",
			expected: AuthorityPrimary,
			desc:     ".gov is primary",
		},
		{
			url:      "https://nhm.gov.in/",
			expected: AuthorityPrimary,
			desc:     ".gov.in is primary",
		},
		{
			url:      "https://medicine.stanford.edu/",
			expected: AuthoritySecondary,
			desc:     ".edu is secondary",
		},
		{
			url:      "https://aiims.ac.in/",
			expected: AuthoritySecondary,
			desc:     ".ac.in is secondary",
		},
		{
			url:      "https://randomhealthblog.com/tips",
			expected: AuthorityTertiary,
			desc:     "Unknown domain defaults to tertiary",
		},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			result := classifier.Classify("", tt.url)
			if result != tt.expected {
				t.Errorf("Expected %d for %s, got %d", tt.expected, tt.url, result)
			}
		})
	}
}

func TestAuthorityClassifier_NameFallback(t *testing.T) {
	classifier := NewAuthorityClassifier()

	tests := []struct {
		name     string
		expected int
		desc     string
	}{
		{
			name:     "Ministry of Health, Sri Lanka",
			expected: AuthorityPrimary,
			desc:     "Health ministry name is primary without a URL",
		},
		{
			name:     "Royal Academy of Medicine",
			expected: AuthoritySecondary,
			desc:     "Academy name is secondary",
		},
		{
			name:     "Community Health Blog",
			expected: AuthorityTertiary,
			desc:     "Unknown name defaults to tertiary",
		},
		{
			name:     "",
			expected: AuthorityTertiary,
			desc:     "Empty name and URL default to tertiary",
		},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			result := classifier.Classify(tt.name, "")
			if result != tt.expected {
				t.Errorf("Expected %d for %q, got %d", tt.expected, tt.name, result)
			}
		})
	}
}

func TestAuthorityClassifier_PortAndInvalidURLs(t *testing.T) {
	classifier := NewAuthorityClassifier()

	if got := classifier.Classify("", "https://who.int:443/news"); got != AuthorityPrimary {
		t.Errorf("Expected port to be stripped before matching, got %d", got)
	}
	if got := classifier.Classify("", "://bad"); got != AuthorityTertiary {
		t.Errorf("Expected malformed URL to default to tertiary, got %d", got)
	}
}

func TestSortFactsByAuthority(t *testing.T) {
	blog := &model.MedicalSource{Name: "Blog", AuthorityLevel: AuthorityTertiary}
	nih := &model.MedicalSource{Name: "NIH", AuthorityLevel: AuthoritySecondary}
	who := &model.MedicalSource{Name: "WHO", AuthorityLevel: AuthorityPrimary}

	facts := []model.MedicalFact{
		{ID: 1, FactText: "a", Source: blog},
		{ID: 2, FactText: "b", Source: nih},
		{ID: 3, FactText: "c"}, // no source loaded
		{ID: 4, FactText: "d", Source: who},
		{ID: 5, FactText: "e", Source: who},
	}

	SortFactsByAuthority(facts)

	wantOrder := []int64{4, 5, 2, 1, 3}
	for i, want := range wantOrder {
		if facts[i].ID != want {
			t.Fatalf("Expected fact %d at position %d, got %d", want, i, facts[i].ID)
		}
	}
}
