package signals

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/antonio-prism/prism-brain/internal/model"
)

// newsWindow is the lookback for incident counts. The trend compares its
// recent half against its older half.
const newsWindow = 30 * 24 * time.Hour

// domainQueries are the NewsAPI search terms per risk domain.
var domainQueries = map[model.Domain]string{
	model.DomainPhysical:    `(flood OR earthquake OR wildfire OR storm OR "extreme weather")`,
	model.DomainStructural:  `(sanctions OR tariff OR recession OR regulation OR "trade war")`,
	model.DomainOperational: `("supply chain" OR strike OR shortage OR outage OR recall)`,
	model.DomainDigital:     `(ransomware OR cyberattack OR "data breach" OR malware)`,
}

// NewsAPI counts recent incident coverage per risk domain.
type NewsAPI struct {
	client  *jsonClient
	baseURL string
	apiKey  string
	now     func() time.Time
}

// NewNewsAPI returns a client for the everything-search endpoint.
func NewNewsAPI(c *jsonClient, baseURL, apiKey string) *NewsAPI {
	return &NewsAPI{
		client:  c,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (n *NewsAPI) Name() string { return "newsapi" }

type newsResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	TotalResults int    `json:"totalResults"`
	Articles     []struct {
		PublishedAt time.Time `json:"publishedAt"`
	} `json:"articles"`
}

func (n *NewsAPI) Fetch(ctx context.Context, sc Context) (IndicatorSet, error) {
	now := n.now()
	from := now.Add(-newsWindow)
	mid := now.Add(-newsWindow / 2)

	set := IndicatorSet{
		Category:   News,
		Indicators: map[string]float64{},
		Domains:    make(map[model.Domain]DomainSignal, len(model.Domains)),
	}

	var total int
	for _, d := range model.Domains {
		query := domainQueries[d]
		if sc.Industry != "" {
			query += " AND " + `"` + sc.Industry + `"`
		}
		q := url.Values{}
		q.Set("q", query)
		q.Set("from", from.Format("2006-01-02"))
		q.Set("sortBy", "publishedAt")
		q.Set("language", "en")
		q.Set("pageSize", "100")
		q.Set("apiKey", n.apiKey)

		var resp newsResponse
		if err := n.client.getJSON(ctx, n.Name(), n.baseURL+"/everything?"+q.Encode(), &resp); err != nil {
			return IndicatorSet{}, err
		}
		if resp.Status != "ok" {
			return IndicatorSet{}, eris.Errorf("newsapi: status %q: %s", resp.Status, resp.Message)
		}

		var recent, older int
		for _, a := range resp.Articles {
			if a.PublishedAt.After(mid) {
				recent++
			} else {
				older++
			}
		}
		pct := changePct(float64(older), float64(recent))
		set.Domains[d] = DomainSignal{
			Incidents: resp.TotalResults,
			Trend:     ClassifyTrend(pct),
			TrendPct:  pct,
		}
		total += resp.TotalResults
	}

	// Coverage saturates at 400 articles across all domains in the window.
	set.Indicators[IndCoverage] = model.Clamp01(float64(total) / 400)
	return set, nil
}

// changePct returns the percentage change from before to after. A series
// starting from zero counts as +100% when anything appears.
func changePct(before, after float64) float64 {
	if before == 0 {
		if after == 0 {
			return 0
		}
		return 100
	}
	return (after - before) / before * 100
}
