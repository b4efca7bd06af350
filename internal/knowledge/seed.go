package knowledge

import (
	"context"
	"fmt"
	"os"

	"github.com/prahari-health/prahari/internal/model"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
)

const defaultFactConfidence = 0.8

// Catalog is the seedable knowledge set: authoritative sources plus
// conditions whose list items become facts.
type Catalog struct {
	Sources    []CatalogSource    `yaml:"sources"`
	Conditions []CatalogCondition `yaml:"conditions"`
}

// CatalogSource describes one authority to seed
type CatalogSource struct {
	Code           string `yaml:"code"`
	Name           string `yaml:"name"`
	AuthorityLevel int    `yaml:"authority_level"`
	URL            string `yaml:"url"`
	Description    string `yaml:"description"`
}

// CatalogCondition describes one condition to seed. Sources lists catalog
// codes; the first is the condition's primary source and owns its facts.
type CatalogCondition struct {
	Name              string   `yaml:"name"`
	ICDCode           string   `yaml:"icd_code"`
	Description       string   `yaml:"description"`
	Symptoms          []string `yaml:"symptoms"`
	Treatments        []string `yaml:"treatments"`
	WarningSigns      []string `yaml:"warning_signs"`
	Contraindications []string `yaml:"contraindications"`
	Prevention        []string `yaml:"prevention"`
	Sources           []string `yaml:"sources"`
}

// Validate checks internal consistency before anything touches the database
func (c *Catalog) Validate() error {
	codes := make(map[string]bool, len(c.Sources))
	for _, src := range c.Sources {
		if src.Code == "" || src.Name == "" {
			return fmt.Errorf("source %q: code and name are required", src.Code)
		}
		if codes[src.Code] {
			return fmt.Errorf("duplicate source code %q", src.Code)
		}
		codes[src.Code] = true
	}
	for _, cond := range c.Conditions {
		if cond.Name == "" {
			return fmt.Errorf("condition with empty name")
		}
		if len(cond.Sources) == 0 {
			return fmt.Errorf("condition %q: at least one source code is required", cond.Name)
		}
		for _, code := range cond.Sources {
			if !codes[code] {
				return fmt.Errorf("condition %q: unknown source code %q", cond.Name, code)
			}
		}
	}
	return nil
}

// LoadCatalog reads a YAML catalog file; an empty path yields the
// compiled-in default.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return &c, nil
}

// SeedReport counts what a Seed call actually inserted
type SeedReport struct {
	SourcesCreated    int
	ConditionsCreated int
	FactsCreated      int
}

// Seed loads a catalog idempotently: sources and conditions are matched by
// name, facts by (condition, fact type, text). Re-running with the same
// catalog inserts nothing.
func (s *Store) Seed(ctx context.Context, catalog *Catalog) (*SeedReport, error) {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	report := &SeedReport{}
	sourcesByCode := make(map[string]*model.MedicalSource, len(catalog.Sources))

	for _, cs := range catalog.Sources {
		level := cs.AuthorityLevel
		if level == 0 {
			level = s.classifier.Classify(cs.Name, cs.URL)
		}
		src := model.MedicalSource{}
		res := s.db.WithContext(ctx).
			Where("name = ?", cs.Name).
			Attrs(model.MedicalSource{
				Name:           cs.Name,
				AuthorityLevel: level,
				URL:            cs.URL,
				Description:    cs.Description,
				IsActive:       true,
			}).
			FirstOrCreate(&src)
		if res.Error != nil {
			return report, fmt.Errorf("seed source %q: %w", cs.Name, res.Error)
		}
		if res.RowsAffected > 0 {
			report.SourcesCreated++
		}
		sourcesByCode[cs.Code] = &src
	}

	for _, cc := range catalog.Conditions {
		cond := model.MedicalCondition{}
		res := s.db.WithContext(ctx).
			Where("name = ?", cc.Name).
			Attrs(model.MedicalCondition{
				Name:              cc.Name,
				ICDCode:           cc.ICDCode,
				Description:       cc.Description,
				Symptoms:          datatypes.NewJSONSlice(cc.Symptoms),
				Treatments:        datatypes.NewJSONSlice(cc.Treatments),
				WarningSigns:      datatypes.NewJSONSlice(cc.WarningSigns),
				Contraindications: datatypes.NewJSONSlice(cc.Contraindications),
				Prevention:        datatypes.NewJSONSlice(cc.Prevention),
			}).
			FirstOrCreate(&cond)
		if res.Error != nil {
			return report, fmt.Errorf("seed condition %q: %w", cc.Name, res.Error)
		}
		if res.RowsAffected > 0 {
			report.ConditionsCreated++
		}

		primary := sourcesByCode[cc.Sources[0]]
		created, err := s.seedFacts(ctx, &cond, primary, cc)
		if err != nil {
			return report, err
		}
		report.FactsCreated += created
	}

	s.invalidate()
	s.logger.Info("knowledge catalog seeded",
		zap.Int("sources_created", report.SourcesCreated),
		zap.Int("conditions_created", report.ConditionsCreated),
		zap.Int("facts_created", report.FactsCreated),
	)
	return report, nil
}

// seedFacts creates one fact per list item, attributed to the condition's
// primary source.
func (s *Store) seedFacts(ctx context.Context, cond *model.MedicalCondition, src *model.MedicalSource, cc CatalogCondition) (int, error) {
	created := 0
	groups := []struct {
		factType model.FactType
		items    []string
	}{
		{model.FactSymptom, cc.Symptoms},
		{model.FactTreatment, cc.Treatments},
		{model.FactPrevention, cc.Prevention},
	}
	for _, g := range groups {
		for _, text := range g.items {
			fact := model.MedicalFact{}
			res := s.db.WithContext(ctx).
				Where("condition_id = ? AND fact_type = ? AND fact_text = ?", cond.ID, g.factType, text).
				Attrs(model.MedicalFact{
					ConditionID: cond.ID,
					SourceID:    src.ID,
					FactType:    g.factType,
					FactText:    text,
					Confidence:  defaultFactConfidence,
					IsActive:    true,
				}).
				FirstOrCreate(&fact)
			if res.Error != nil {
				return created, fmt.Errorf("seed fact %q for %q: %w", text, cond.Name, res.Error)
			}
			if res.RowsAffected > 0 {
				created++
			}
		}
	}
	return created, nil
}

// DefaultCatalog is the compiled-in seed set: WHO plus Indian national
// health authorities, and the ten conditions community health workers ask
// about most.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Sources: []CatalogSource{
			{
				Code:           "WHO",
				Name:           "World Health Organization",
				AuthorityLevel: 1,
				URL:            "https://www.who.int/",
				Description:    "Global health authority guidelines",
			},
			{
				Code:           "ICMR",
				Name:           "Indian Council of Medical Research",
				AuthorityLevel: 1,
				URL:            "https://www.icmr.gov.in/",
				Description:    "Indian medical research authority",
			},
			{
				Code:           "MOH_INDIA",
				Name:           "Ministry of Health & Family Welfare, India",
				AuthorityLevel: 1,
				URL:            "https://mohfw.gov.in/",
				Description:    "Indian government health ministry",
			},
			{
				Code:           "NACO",
				Name:           "National AIDS Control Organization",
				AuthorityLevel: 1,
				URL:            "https://naco.gov.in/",
				Description:    "HIV/AIDS guidelines India",
			},
			{
				Code:           "IAP",
				Name:           "Indian Academy of Pediatrics",
				AuthorityLevel: 2,
				URL:            "https://www.iapindia.org/",
				Description:    "Pediatric guidelines for India",
			},
			{
				Code:           "NIH",
				Name:           "National Institutes of Health",
				AuthorityLevel: 2,
				URL:            "https://www.nih.gov/",
				Description:    "US medical research",
			},
		},
		Conditions: []CatalogCondition{
			{
				Name:              "Fever",
				ICDCode:           "R50",
				Symptoms:          []string{"high body temperature", "chills", "sweating", "body ache"},
				Treatments:        []string{"rest", "hydration", "paracetamol 500mg", "ibuprofen 400mg"},
				Contraindications: []string{"aspirin in children under 16"},
				Prevention:        []string{"hygiene", "vaccination", "avoid close contact with sick people"},
				Sources:           []string{"WHO", "MOH_INDIA"},
			},
			{
				Name:              "Cough",
				ICDCode:           "R05",
				Symptoms:          []string{"throat irritation", "phlegm", "chest discomfort"},
				Treatments:        []string{"rest", "cough syrup", "honey", "fluids"},
				Contraindications: []string{"NSAIDs in severe asthma"},
				Prevention:        []string{"avoid irritants", "humidity", "ventilation"},
				Sources:           []string{"WHO", "MOH_INDIA"},
			},
			{
				Name:              "Diarrhea",
				ICDCode:           "A19",
				Symptoms:          []string{"loose stools", "frequency increased", "abdominal pain", "dehydration"},
				Treatments:        []string{"oral rehydration", "zinc supplementation", "rest"},
				Contraindications: []string{"antibiotics without bacterial confirmation"},
				Prevention:        []string{"clean water", "hand hygiene", "safe food handling"},
				Sources:           []string{"WHO", "MOH_INDIA"},
			},
			{
				Name:              "Headache",
				ICDCode:           "R51",
				Symptoms:          []string{"head pain", "sensitivity to light", "nausea"},
				Treatments:        []string{"paracetamol", "ibuprofen", "rest", "hydration"},
				Contraindications: []string{"excessive medication use"},
				Prevention:        []string{"stress management", "hydration", "sleep"},
				Sources:           []string{"WHO", "NIH"},
			},
			{
				Name:              "Malaria",
				ICDCode:           "B54",
				Symptoms:          []string{"fever", "chills", "sweating", "muscle pain", "headache"},
				Treatments:        []string{"antimalarial drugs", "ACT therapy", "supportive care"},
				WarningSigns:      []string{"severe fever", "confusion", "convulsions"},
				Contraindications: []string{"certain drugs with G6PD deficiency"},
				Prevention:        []string{"mosquito nets", "indoor spraying", "prophylaxis in endemic areas"},
				Sources:           []string{"WHO", "MOH_INDIA", "NACO"},
			},
			{
				Name:              "Dengue Fever",
				ICDCode:           "A90",
				Symptoms:          []string{"fever", "rash", "joint pain", "eye pain", "bleeding symptoms"},
				Treatments:        []string{"supportive care", "no specific antiviral"},
				WarningSigns:      []string{"bleeding", "shock", "organ failure"},
				Contraindications: []string{"aspirin", "ibuprofen"},
				Prevention:        []string{"mosquito control", "nets", "avoid travel to endemic areas"},
				Sources:           []string{"WHO", "MOH_INDIA"},
			},
			{
				Name:         "Typhoid Fever",
				ICDCode:      "A01",
				Symptoms:     []string{"sustained high fever", "rose spots", "delirium", "diarrhea"},
				Treatments:   []string{"antibiotics", "supportive care", "fluids"},
				WarningSigns: []string{"perforation", "encephalopathy"},
				Prevention:   []string{"vaccination", "clean water", "food safety"},
				Sources:      []string{"WHO", "MOH_INDIA"},
			},
			{
				Name:         "Tuberculosis",
				ICDCode:      "A15",
				Symptoms:     []string{"persistent cough", "fever", "night sweats", "weight loss", "hemoptysis"},
				Treatments:   []string{"DOTS therapy", "isoniazid", "rifampicin", "pyrazinamide"},
				WarningSigns: []string{"drug-resistant TB", "immunosuppression"},
				Prevention:   []string{"BCG vaccination", "contact tracing", "ventilation"},
				Sources:      []string{"WHO", "MOH_INDIA"},
			},
			{
				Name:       "Hypertension",
				ICDCode:    "I10",
				Symptoms:   []string{"often asymptomatic", "headache", "chest pain"},
				Treatments: []string{"lifestyle changes", "antihypertensives", "diet"},
				Prevention: []string{"weight management", "exercise", "low salt intake"},
				Sources:    []string{"WHO", "MOH_INDIA"},
			},
			{
				Name:       "Diabetes",
				ICDCode:    "E11",
				Symptoms:   []string{"polyuria", "polydipsia", "weight loss", "fatigue"},
				Treatments: []string{"diet control", "metformin", "insulin", "exercise"},
				Prevention: []string{"weight management", "healthy diet", "exercise"},
				Sources:    []string{"WHO", "MOH_INDIA"},
			},
		},
	}
}
