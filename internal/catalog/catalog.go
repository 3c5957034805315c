// Package catalog loads the risk catalog and client files. Both are YAML;
// JSON files parse too.
package catalog

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/antonio-prism/prism-brain/internal/model"
)

// riskDoc accepts both the native snake_case keys and the legacy
// spreadsheet export keys (Event_ID, Layer_1_Primary, ...).
type riskDoc struct {
	ID                 string   `yaml:"id"`
	Name               string   `yaml:"name"`
	Domain             string   `yaml:"domain"`
	Category           string   `yaml:"category"`
	Description        string   `yaml:"description"`
	GeographicScope    string   `yaml:"geographic_scope"`
	IsSuperRisk        flag     `yaml:"is_super_risk"`
	BaseProbability    *float64 `yaml:"base_probability"`
	AffectedIndustries string   `yaml:"affected_industries"`

	LegacyID          string `yaml:"Event_ID"`
	LegacyName        string `yaml:"Event_Name"`
	LegacyDomain      string `yaml:"Layer_1_Primary"`
	LegacyCategory    string `yaml:"Layer_2_Primary"`
	LegacyDescription string `yaml:"Event_Description"`
	LegacyScope       string `yaml:"Geographic_Scope"`
	LegacySuperRisk   flag   `yaml:"Super_Risk"`
	LegacyIndustries  string `yaml:"Affected_Industries"`
}

// defaultBaseProbability is used when a catalog row has none.
const defaultBaseProbability = 0.5

func first(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (d riskDoc) risk() (model.RiskEvent, error) {
	r := model.RiskEvent{
		ID:                 first(d.ID, d.LegacyID),
		Name:               first(d.Name, d.LegacyName),
		Category:           first(d.Category, d.LegacyCategory),
		Description:        first(d.Description, d.LegacyDescription),
		GeographicScope:    first(d.GeographicScope, d.LegacyScope),
		IsSuperRisk:        bool(d.IsSuperRisk) || bool(d.LegacySuperRisk),
		AffectedIndustries: first(d.AffectedIndustries, d.LegacyIndustries),
		BaseProbability:    defaultBaseProbability,
	}
	if d.BaseProbability != nil {
		r.BaseProbability = model.Clamp01(*d.BaseProbability)
	}
	if r.ID == "" {
		return r, eris.New("missing id")
	}
	domain, ok := model.ParseDomain(first(d.Domain, d.LegacyDomain))
	if !ok {
		return r, eris.Errorf("risk %s: unknown domain %q", r.ID, first(d.Domain, d.LegacyDomain))
	}
	r.Domain = domain
	return r, nil
}

// flag decodes YAML booleans and the legacy "YES"/"NO" strings.
type flag bool

func (f *flag) UnmarshalYAML(n *yaml.Node) error {
	var b bool
	if err := n.Decode(&b); err == nil {
		*f = flag(b)
		return nil
	}
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true", "1":
		*f = true
	default:
		*f = false
	}
	return nil
}

// ParseRisks decodes a catalog. The document is either a list of risks or a
// mapping with a "risks" list. IDs must be unique.
func ParseRisks(data []byte) ([]model.RiskEvent, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, eris.Wrap(err, "catalog: parse risks")
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	doc := root.Content[0]
	if doc.Kind == yaml.MappingNode {
		var wrapper struct {
			Risks yaml.Node `yaml:"risks"`
		}
		if err := doc.Decode(&wrapper); err != nil {
			return nil, eris.Wrap(err, "catalog: parse risks")
		}
		doc = &wrapper.Risks
	}
	if doc.Kind == 0 {
		return nil, nil
	}

	var docs []riskDoc
	if err := doc.Decode(&docs); err != nil {
		return nil, eris.Wrap(err, "catalog: decode risks")
	}

	risks := make([]model.RiskEvent, 0, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for i, d := range docs {
		r, err := d.risk()
		if err != nil {
			return nil, eris.Wrapf(err, "catalog: risk %d", i+1)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, eris.Errorf("catalog: duplicate risk id %s", r.ID)
		}
		seen[r.ID] = struct{}{}
		risks = append(risks, r)
	}
	return risks, nil
}

// LoadRisks reads a catalog file.
func LoadRisks(path string) ([]model.RiskEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	return ParseRisks(data)
}

// FilterDomain keeps the risks in domain. An empty domain keeps everything.
func FilterDomain(risks []model.RiskEvent, domain string) ([]model.RiskEvent, error) {
	if strings.TrimSpace(domain) == "" {
		return risks, nil
	}
	d, ok := model.ParseDomain(domain)
	if !ok {
		return nil, eris.Errorf("catalog: unknown domain %q", domain)
	}
	var out []model.RiskEvent
	for _, r := range risks {
		if r.Domain == d {
			out = append(out, r)
		}
	}
	return out, nil
}
