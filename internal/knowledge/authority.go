package knowledge

import (
	"net/url"
	"sort"
	"strings"

	"github.com/prahari-health/prahari/internal/model"
)

// Authority levels rank how much weight a source carries when facts
// disagree. Level 1 covers WHO and national health authorities, level 2
// professional and research bodies, level 3 everything else.
const (
	AuthorityPrimary   = 1
	AuthoritySecondary = 2
	AuthorityTertiary  = 3
)

// AuthorityClassifier assigns authority levels to medical sources from
// their name or URL. The seeder uses it when a catalog entry omits the
// level; the fact checker uses levels to order conflicting matches.
type AuthorityClassifier struct {
	domainLevels map[string]int
	nameLevels   map[string]int
}

// NewAuthorityClassifier creates a classifier with the built-in tables
func NewAuthorityClassifier() *AuthorityClassifier {
	return &AuthorityClassifier{
		domainLevels: map[string]int{
			"who.int":      AuthorityPrimary,
			"icmr.gov.in":  AuthorityPrimary,
			"mohfw.gov.in": AuthorityPrimary,
			"naco.gov.in":  AuthorityPrimary,
			"cdc.gov":      AuthorityPrimary,
			"nih.gov":      AuthoritySecondary,
			"iapindia.org": AuthoritySecondary,
		},
		nameLevels: map[string]int{
			"world health organization":          AuthorityPrimary,
			"ministry of health":                 AuthorityPrimary,
			"indian council of medical research": AuthorityPrimary,
			"national aids control":              AuthorityPrimary,
			"national institutes of health":      AuthoritySecondary,
			"academy":                            AuthoritySecondary,
			"institute":                          AuthoritySecondary,
			"university":                         AuthoritySecondary,
		},
	}
}

// Classify returns the authority level for a source given its display
// name and URL. Explicit domain mappings win over TLD heuristics so a
// research body on a .gov domain keeps its secondary rank.
func (a *AuthorityClassifier) Classify(name, rawURL string) int {
	if host := hostOf(rawURL); host != "" {
		if level, ok := a.domainLevels[host]; ok {
			return level
		}
		for domain, level := range a.domainLevels {
			if strings.HasSuffix(host, "."+domain) {
				return level
			}
		}
		if strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".gov.in") ||
			strings.HasSuffix(host, ".nic.in") || strings.HasSuffix(host, ".int") {
			return AuthorityPrimary
		}
		if strings.HasSuffix(host, ".edu") || strings.HasSuffix(host, ".ac.in") ||
			strings.HasSuffix(host, ".ac.uk") {
			return AuthoritySecondary
		}
	}

	lowered := strings.ToLower(name)
	for fragment, level := range a.nameLevels {
		if strings.Contains(lowered, fragment) {
			return level
		}
	}

	return AuthorityTertiary
}

func hostOf(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := parsed.Host
	if idx := strings.Index(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return strings.ToLower(host)
}

// SortFactsByAuthority orders facts so level-1 sources come first, with
// the insertion order preserved within a level.
func SortFactsByAuthority(facts []model.MedicalFact) {
	sort.SliceStable(facts, func(i, j int) bool {
		return factAuthority(facts[i]) < factAuthority(facts[j])
	})
}

func factAuthority(f model.MedicalFact) int {
	if f.Source == nil {
		return AuthorityTertiary
	}
	return f.Source.AuthorityLevel
}
