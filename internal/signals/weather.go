package signals

import (
	"context"
	"math"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// OpenWeatherMap reads current conditions for the client location.
type OpenWeatherMap struct {
	client  *jsonClient
	baseURL string
	apiKey  string
}

// NewOpenWeatherMap returns a client for the current weather endpoint.
func NewOpenWeatherMap(c *jsonClient, baseURL, apiKey string) *OpenWeatherMap {
	return &OpenWeatherMap{client: c, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

func (o *OpenWeatherMap) Name() string { return "openweathermap" }

type owmResponse struct {
	Weather []struct {
		ID int `json:"id"`
	} `json:"weather"`
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Rain struct {
		OneHour float64 `json:"1h"`
	} `json:"rain"`
	Snow struct {
		OneHour float64 `json:"1h"`
	} `json:"snow"`
}

func (o *OpenWeatherMap) Fetch(ctx context.Context, sc Context) (IndicatorSet, error) {
	place := sc.Location
	if place == "" {
		place = sc.Region
	}
	if place == "" {
		return IndicatorSet{}, eris.New("openweathermap: no location")
	}

	q := url.Values{}
	q.Set("q", place)
	q.Set("appid", o.apiKey)
	q.Set("units", "metric")

	var resp owmResponse
	if err := o.client.getJSON(ctx, o.Name(), o.baseURL+"/weather?"+q.Encode(), &resp); err != nil {
		return IndicatorSet{}, err
	}
	if len(resp.Weather) == 0 {
		return IndicatorSet{}, eris.New("openweathermap: no weather conditions in response")
	}

	code := conditionSeverity(resp.Weather[0].ID)
	wind := math.Min(resp.Wind.Speed/30, 1)
	temp := math.Min(math.Abs(resp.Main.Temp-15)/30, 1)
	precip := math.Min((resp.Rain.OneHour+resp.Snow.OneHour)/20, 1)

	return IndicatorSet{
		Category: Weather,
		Indicators: map[string]float64{
			IndSeverity:      0.5*code + 0.2*wind + 0.15*temp + 0.15*precip,
			IndWind:          wind,
			IndTemperature:   temp,
			IndPrecipitation: precip,
		},
	}, nil
}

// conditionSeverity scores an OpenWeatherMap condition code.
func conditionSeverity(id int) float64 {
	switch {
	case id == 781: // tornado
		return 1
	case id >= 200 && id < 300: // thunderstorm
		return 0.8
	case id >= 502 && id < 600: // heavy rain
		return 0.6
	case id >= 600 && id < 700: // snow
		return 0.5
	case id >= 300 && id < 600: // drizzle, rain
		return 0.35
	case id >= 700 && id < 800: // mist, dust, ash
		return 0.3
	case id > 800: // clouds
		return 0.1
	default:
		return 0.05
	}
}
