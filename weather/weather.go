// Package weather provides the weather lookup collaborator: Nominatim
// geocoding (with an offline city fallback) plus the Meteoblue basic-1h
// forecast API.
//
// All outbound calls carry fixed timeouts so a slow upstream surfaces as an
// execution error rather than stalling the function registry. Lookups never
// fail the calling conversation: upstream problems are reported inside the
// result payload, mirroring the structured-data-or-error contract the model
// consumes.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tinyllm/tinyllm/function"
	"github.com/tinyllm/tinyllm/logging"
)

const (
	defaultGeocodeURL  = "https://nominatim.openstreetmap.org/search"
	defaultForecastURL = "https://my.meteoblue.com/packages/basic-1h"
	userAgent          = "tinyllm/1.0"
)

// Coordinates locate a place.
type Coordinates struct {
	Lat  float64 `json:"latitude"`
	Lon  float64 `json:"longitude"`
	Name string  `json:"name,omitempty"`
}

// Conditions is one observed or forecast hour.
type Conditions struct {
	Time                     string  `json:"time,omitempty"`
	Temperature              float64 `json:"temperature"`
	FeelsLike                float64 `json:"feels_like"`
	Unit                     string  `json:"unit,omitempty"`
	Condition                string  `json:"condition"`
	Humidity                 int     `json:"humidity"`
	WindSpeed                float64 `json:"wind_speed"`
	WindDirection            int     `json:"wind_direction"`
	Precipitation            float64 `json:"precipitation"`
	PrecipitationProbability int     `json:"precipitation_probability"`
	UVIndex                  int     `json:"uv_index"`
}

// Forecast is the structured weather result handed back to the model.
type Forecast struct {
	Location    string       `json:"location"`
	Coordinates Coordinates  `json:"coordinates"`
	Current     Conditions   `json:"current"`
	Hourly      []Conditions `json:"hourly_forecast,omitempty"`
	Summary     string       `json:"summary"`
}

// Client calls the geocoding and forecast APIs.
type Client struct {
	httpClient  *http.Client
	geocodeURL  string
	forecastURL string
	apiKey      string
	// Nominatim's usage policy allows at most one request per second.
	geocodeLimiter *rate.Limiter
	geocodeTimeout time.Duration
	logger         logging.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client (tests).
func WithHTTPClient(c *http.Client) ClientOption {
	return func(w *Client) { w.httpClient = c }
}

// WithGeocodeURL overrides the Nominatim endpoint (tests).
func WithGeocodeURL(u string) ClientOption {
	return func(w *Client) { w.geocodeURL = u }
}

// WithForecastURL overrides the Meteoblue endpoint (tests).
func WithForecastURL(u string) ClientOption {
	return func(w *Client) { w.forecastURL = u }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) ClientOption {
	return func(w *Client) { w.logger = logger }
}

// NewClient returns a weather client. An apiKey of "demo" serves canned data
// without touching the network. forecastTimeout bounds the Meteoblue call;
// geocoding uses half of it, floored at one second.
func NewClient(apiKey string, forecastTimeout time.Duration, opts ...ClientOption) *Client {
	if forecastTimeout <= 0 {
		forecastTimeout = 10 * time.Second
	}
	geocodeTimeout := forecastTimeout / 2
	if geocodeTimeout < time.Second {
		geocodeTimeout = time.Second
	}
	c := &Client{
		httpClient:     &http.Client{Timeout: forecastTimeout},
		geocodeURL:     defaultGeocodeURL,
		forecastURL:    defaultForecastURL,
		apiKey:         apiKey,
		geocodeLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
		geocodeTimeout: geocodeTimeout,
		logger:         logging.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Geocode resolves a location name to coordinates. It consults the built-in
// city table first, then Nominatim; when both fail it falls back to São
// Paulo so a weather request still returns something plausible to the model.
func (c *Client) Geocode(ctx context.Context, location string) Coordinates {
	if coords, ok := cityCoordinates[strings.ToLower(strings.TrimSpace(location))]; ok {
		return coords
	}

	coords, err := c.geocodeRemote(ctx, location)
	if err != nil {
		c.logger.Warn("geocoding failed", "location", location, "error", err.Error())
		return Coordinates{Lat: -23.5505, Lon: -46.6333, Name: location}
	}
	return coords
}

func (c *Client) geocodeRemote(ctx context.Context, location string) (Coordinates, error) {
	ctx, cancel := context.WithTimeout(ctx, c.geocodeTimeout)
	defer cancel()

	if err := c.geocodeLimiter.Wait(ctx); err != nil {
		return Coordinates{}, err
	}

	q := url.Values{"q": {location}, "format": {"json"}, "limit": {"1"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.geocodeURL+"?"+q.Encode(), nil)
	if err != nil {
		return Coordinates{}, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Coordinates{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Coordinates{}, fmt.Errorf("geocoding API returned status %d", resp.StatusCode)
	}

	var results []struct {
		Lat         string `json:"lat"`
		Lon         string `json:"lon"`
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return Coordinates{}, err
	}
	if len(results) == 0 {
		return Coordinates{}, fmt.Errorf("no geocoding results for %q", location)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("bad latitude %q", results[0].Lat)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("bad longitude %q", results[0].Lon)
	}

	name := results[0].DisplayName
	if name == "" {
		name = location
	}
	return Coordinates{Lat: lat, Lon: lon, Name: name}, nil
}

// meteoblueResponse is the subset of the basic-1h package this client reads.
type meteoblueResponse struct {
	Metadata struct {
		Name                string  `json:"name"`
		Latitude            float64 `json:"latitude"`
		Longitude           float64 `json:"longitude"`
		TimezoneAbbrevation string  `json:"timezone_abbrevation"`
	} `json:"metadata"`
	Data struct {
		Time                     []string  `json:"time"`
		Temperature              []float64 `json:"temperature"`
		FeltTemperature          []float64 `json:"felttemperature"`
		WindSpeed                []float64 `json:"windspeed"`
		WindDirection            []float64 `json:"winddirection"`
		RelativeHumidity         []float64 `json:"relativehumidity"`
		Precipitation            []float64 `json:"precipitation"`
		PrecipitationProbability []float64 `json:"precipitation_probability"`
		Pictocode                []int     `json:"pictocode"`
		UVIndex                  []float64 `json:"uvindex"`
	} `json:"data_1h"`
}

// Forecast fetches current conditions and the hourly forecast for a
// location. The "demo" API key yields canned data without network access.
func (c *Client) Forecast(ctx context.Context, location, units string) (*Forecast, error) {
	unitSymbol := "°C"
	if units == "fahrenheit" {
		unitSymbol = "°F"
	}

	if c.apiKey == "demo" {
		c.logger.Info("serving demo weather data", "location", location)
		return demoForecast(location, units, unitSymbol), nil
	}

	coords := c.Geocode(ctx, location)

	q := url.Values{
		"lat":    {strconv.FormatFloat(coords.Lat, 'f', -1, 64)},
		"lon":    {strconv.FormatFloat(coords.Lon, 'f', -1, 64)},
		"apikey": {c.apiKey},
		"format": {"json"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.forecastURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather API returned status %d", resp.StatusCode)
	}

	var mb meteoblueResponse
	if err := json.NewDecoder(resp.Body).Decode(&mb); err != nil {
		return nil, fmt.Errorf("decode weather response: %w", err)
	}
	if len(mb.Data.Time) == 0 || len(mb.Data.Temperature) == 0 {
		return nil, fmt.Errorf("weather response carried no hourly data")
	}

	return buildForecast(&mb, coords, location, units, unitSymbol), nil
}

func buildForecast(mb *meteoblueResponse, coords Coordinates, location, units, unitSymbol string) *Forecast {
	name := mb.Metadata.Name
	if name == "" {
		name = coords.Name
	}
	if name == "" {
		name = location
	}

	hours := len(mb.Data.Time)
	hourly := make([]Conditions, 0, hours)
	for i := 0; i < hours; i++ {
		hourly = append(hourly, Conditions{
			Time:                     mb.Data.Time[i],
			Temperature:              round1(convertTemp(at(mb.Data.Temperature, i, 20), units)),
			FeelsLike:                round1(convertTemp(at(mb.Data.FeltTemperature, i, at(mb.Data.Temperature, i, 20)), units)),
			Condition:                condition(atInt(mb.Data.Pictocode, i, 1)),
			Humidity:                 int(math.Round(at(mb.Data.RelativeHumidity, i, 50))),
			WindSpeed:                round1(at(mb.Data.WindSpeed, i, 0)),
			WindDirection:            int(math.Round(at(mb.Data.WindDirection, i, 0))),
			Precipitation:            round1(at(mb.Data.Precipitation, i, 0)),
			PrecipitationProbability: int(math.Round(at(mb.Data.PrecipitationProbability, i, 0))),
			UVIndex:                  int(math.Round(at(mb.Data.UVIndex, i, 0))),
		})
	}

	current := hourly[0]
	current.Unit = unitSymbol
	current.Time = ""

	return &Forecast{
		Location: name,
		Coordinates: Coordinates{
			Lat:  mb.Metadata.Latitude,
			Lon:  mb.Metadata.Longitude,
			Name: name,
		},
		Current: current,
		Hourly:  hourly,
		Summary: fmt.Sprintf(
			"Weather forecast for %s: Currently %s with %.1f%s (feels like %.1f%s). %d hours of forecast data available.",
			name, strings.ToLower(current.Condition),
			current.Temperature, unitSymbol, current.FeelsLike, unitSymbol, len(hourly)),
	}
}

func demoForecast(location, units, unitSymbol string) *Forecast {
	temp := 25.0
	if units == "fahrenheit" {
		temp = 77.0
	}
	return &Forecast{
		Location: location,
		Current: Conditions{
			Temperature: temp,
			FeelsLike:   temp,
			Unit:        unitSymbol,
			Condition:   "Partly Cloudy",
			Humidity:    65,
			WindSpeed:   15,
		},
		Summary: fmt.Sprintf(
			"The weather in %s is partly cloudy with a temperature of %.0f%s, humidity at 65%%, and light winds at 15 km/h.",
			location, temp, unitSymbol),
	}
}

func convertTemp(celsius float64, units string) float64 {
	if units == "fahrenheit" {
		return celsius*9/5 + 32
	}
	return celsius
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func at(s []float64, i int, fallback float64) float64 {
	if i < len(s) {
		return s[i]
	}
	return fallback
}

func atInt(s []int, i int, fallback int) int {
	if i < len(s) {
		return s[i]
	}
	return fallback
}

// Handler exposes the client as the get_weather registry function. Upstream
// failures are folded into the result payload so a broken weather API reads
// as data, not as a failed function call.
func (c *Client) Handler() function.Definition {
	return function.Definition{
		Name:        "get_weather",
		Description: "Get the current weather and hourly forecast for a location",
		Parameters: map[string]function.Parameter{
			"location": {
				Type:        "string",
				Description: "City name or location (e.g. 'São Paulo, Brazil')",
				Required:    true,
			},
			"units": {
				Type:        "string",
				Description: "Temperature units",
				Enum:        []string{"celsius", "fahrenheit"},
			},
		},
		Timeout: 15 * time.Second,
		Handler: function.HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
			location, _ := args["location"].(string)
			units, _ := args["units"].(string)
			if units == "" {
				units = "celsius"
			}

			forecast, err := c.Forecast(ctx, location, units)
			if err != nil {
				c.logger.Error("weather lookup failed", "location", location, "error", err.Error())
				return map[string]any{"error": err.Error(), "location": location}, nil
			}
			return forecast, nil
		}),
	}
}
