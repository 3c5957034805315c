package signals

import (
	"context"
	"encoding/json"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/antonio-prism/prism-brain/internal/model"
)

// World Bank indicator codes.
const (
	wbInflation    = "FP.CPI.TOTL.ZG"
	wbUnemployment = "SL.UEM.TOTL.ZS"
	wbGDPGrowth    = "NY.GDP.MKTP.KD.ZG"
)

// countryCodes maps lower-case country and region names to World Bank codes.
var countryCodes = map[string]string{
	"norway":         "NOR",
	"sweden":         "SWE",
	"denmark":        "DNK",
	"finland":        "FIN",
	"iceland":        "ISL",
	"germany":        "DEU",
	"france":         "FRA",
	"spain":          "ESP",
	"portugal":       "PRT",
	"italy":          "ITA",
	"netherlands":    "NLD",
	"belgium":        "BEL",
	"poland":         "POL",
	"austria":        "AUT",
	"switzerland":    "CHE",
	"ireland":        "IRL",
	"united kingdom": "GBR",
	"uk":             "GBR",
	"united states":  "USA",
	"usa":            "USA",
	"canada":         "CAN",
	"china":          "CHN",
	"japan":          "JPN",
	"india":          "IND",
	"brazil":         "BRA",
	"australia":      "AUS",
	"europe":         "EUU",
	"european union": "EUU",
	"eu":             "EUU",
}

var countryNames = slices.Sorted(maps.Keys(countryCodes))

// CountryCode resolves free-form region or location text to a World Bank
// country code. Unknown places resolve to the world aggregate.
func CountryCode(place string) string {
	p := norm(place)
	if code, ok := countryCodes[p]; ok {
		return code
	}
	// "Oslo, Norway" style locations.
	if i := strings.LastIndex(p, ","); i >= 0 {
		if code, ok := countryCodes[strings.TrimSpace(p[i+1:])]; ok {
			return code
		}
	}
	for _, name := range countryNames {
		if len(name) > 3 && strings.Contains(p, name) {
			return countryCodes[name]
		}
	}
	return "WLD"
}

// WorldBank reads macro indicators that drive the structural stress value.
type WorldBank struct {
	client  *jsonClient
	baseURL string
}

// NewWorldBank returns a client for the indicator API. It needs no key.
func NewWorldBank(c *jsonClient, baseURL string) *WorldBank {
	return &WorldBank{client: c, baseURL: strings.TrimRight(baseURL, "/")}
}

func (w *WorldBank) Name() string { return "worldbank" }

type wbObservation struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

func (w *WorldBank) latest(ctx context.Context, country, indicator string) (float64, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("mrv", "5")
	rawURL := w.baseURL + "/country/" + url.PathEscape(country) + "/indicator/" + indicator + "?" + q.Encode()

	var pages []json.RawMessage
	if err := w.client.getJSON(ctx, w.Name(), rawURL, &pages); err != nil {
		return 0, err
	}
	if len(pages) < 2 {
		return 0, eris.Errorf("worldbank: no data for %s %s", country, indicator)
	}
	var obs []wbObservation
	if err := json.Unmarshal(pages[1], &obs); err != nil {
		return 0, eris.Wrapf(err, "worldbank: decode %s", indicator)
	}
	// Observations are newest first; values can be null for recent years.
	for _, o := range obs {
		if o.Value != nil {
			return *o.Value, nil
		}
	}
	return 0, eris.Errorf("worldbank: no values for %s %s", country, indicator)
}

func (w *WorldBank) Fetch(ctx context.Context, sc Context) (IndicatorSet, error) {
	place := sc.Region
	if place == "" {
		place = sc.Location
	}
	country := CountryCode(place)

	inflation, err := w.latest(ctx, country, wbInflation)
	if err != nil {
		return IndicatorSet{}, err
	}
	unemployment, err := w.latest(ctx, country, wbUnemployment)
	if err != nil {
		return IndicatorSet{}, err
	}
	growth, err := w.latest(ctx, country, wbGDPGrowth)
	if err != nil {
		return IndicatorSet{}, err
	}

	inf := model.Clamp01(inflation / 10)
	unemp := model.Clamp01(unemployment / 15)
	// Growth below 2% starts to count; a 3% contraction saturates.
	contraction := model.Clamp01((2 - growth) / 5)

	return IndicatorSet{
		Category: Economic,
		Indicators: map[string]float64{
			IndStress:       0.4*inf + 0.3*unemp + 0.3*contraction,
			IndInflation:    inf,
			IndUnemployment: unemp,
			IndContraction:  contraction,
		},
	}, nil
}
