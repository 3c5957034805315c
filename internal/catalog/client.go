package catalog

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/antonio-prism/prism-brain/internal/model"
	"github.com/antonio-prism/prism-brain/internal/pareto"
)

// ClientFile is a client profile with its processes and selection.
type ClientFile struct {
	Client    model.ClientProfile    `yaml:"client" json:"client"`
	Processes []model.ProcessRecord  `yaml:"processes" json:"processes"`
	Selection model.SelectionContext `yaml:"-" json:"selection"`
}

type clientDoc struct {
	Client struct {
		ID               string  `yaml:"id"`
		Name             string  `yaml:"name"`
		Industry         string  `yaml:"industry"`
		Sectors          list    `yaml:"sectors"`
		Location         string  `yaml:"location"`
		Region           string  `yaml:"region"`
		ExportPercentage float64 `yaml:"export_percentage"`
		Currency         string  `yaml:"currency"`
		Revenue          float64 `yaml:"revenue"`
	} `yaml:"client"`
	Processes []model.ProcessRecord `yaml:"processes"`
	Selection struct {
		Risks               []string `yaml:"risks"`
		Processes           []string `yaml:"processes"`
		ProcessThresholdPct float64  `yaml:"process_threshold_pct"`
		MinRiskScore        float64  `yaml:"min_risk_score"`
	} `yaml:"selection"`
}

// list decodes either a YAML sequence or a comma-separated string.
type list []string

func (l *list) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.SequenceNode {
		var items []string
		if err := n.Decode(&items); err != nil {
			return err
		}
		*l = trimAll(items)
		return nil
	}
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	*l = trimAll(strings.Split(s, ","))
	return nil
}

func trimAll(items []string) []string {
	var out []string
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

// ParseClient decodes a client file. Export percentage is clamped to
// [0,100] and the currency defaults to EUR.
func ParseClient(data []byte) (*ClientFile, error) {
	var doc clientDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "catalog: parse client")
	}

	c := doc.Client
	if strings.TrimSpace(c.ID) == "" {
		return nil, eris.New("catalog: client id is required")
	}

	cf := &ClientFile{
		Client: model.ClientProfile{
			ID:               c.ID,
			Name:             c.Name,
			Industry:         c.Industry,
			Sectors:          c.Sectors,
			Location:         c.Location,
			Region:           c.Region,
			ExportPercentage: min(max(c.ExportPercentage, 0), 100),
			Currency:         strings.ToUpper(first(c.Currency, "EUR")),
			Revenue:          model.ClampNonNegative(c.Revenue),
		},
		Selection: model.SelectionContext{
			SelectedRiskIDs:     doc.Selection.Risks,
			SelectedProcessIDs:  doc.Selection.Processes,
			ProcessThresholdPct: doc.Selection.ProcessThresholdPct,
			MinRiskScore:        doc.Selection.MinRiskScore,
		},
	}

	seen := make(map[string]struct{}, len(doc.Processes))
	for i, p := range doc.Processes {
		if p.ID == "" {
			return nil, eris.Errorf("catalog: process %d has no id", i+1)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, eris.Errorf("catalog: duplicate process id %s", p.ID)
		}
		seen[p.ID] = struct{}{}
		p.CriticalityPerDay = model.ClampNonNegative(p.CriticalityPerDay)
		cf.Processes = append(cf.Processes, p)
	}
	return cf, nil
}

// LoadClient reads a client file.
func LoadClient(path string) (*ClientFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	return ParseClient(data)
}

// FillCriticality sets every zero process criticality to the revenue-based
// default and reports how many were filled.
func (cf *ClientFile) FillCriticality(workingDays int) int {
	def := pareto.DefaultCriticality(cf.Client.Revenue, workingDays, len(cf.Processes))
	if def == 0 {
		return 0
	}
	n := 0
	for i := range cf.Processes {
		if cf.Processes[i].CriticalityPerDay == 0 {
			cf.Processes[i].CriticalityPerDay = def
			n++
		}
	}
	return n
}

// WithDefaults returns the selection with zero cutoffs replaced.
func (cf *ClientFile) WithDefaults(thresholdPct, minScore float64) model.SelectionContext {
	sel := cf.Selection
	if sel.ProcessThresholdPct == 0 {
		sel.ProcessThresholdPct = thresholdPct
	}
	if sel.MinRiskScore == 0 {
		sel.MinRiskScore = minScore
	}
	return sel
}
