package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyllm/tinyllm/function"
)

func TestGeocodeKnownCity(t *testing.T) {
	c := NewClient("key", time.Second)

	coords := c.Geocode(context.Background(), "  LONDON ")
	assert.InDelta(t, 51.5074, coords.Lat, 0.001)
	assert.InDelta(t, -0.1278, coords.Lon, 0.001)
	assert.Equal(t, "London, UK", coords.Name)
}

func TestGeocodeRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Curitiba", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte(`[{"lat": "-25.4284", "lon": "-49.2733", "display_name": "Curitiba, Brazil"}]`))
	}))
	defer srv.Close()

	c := NewClient("key", time.Second, WithGeocodeURL(srv.URL))

	coords := c.Geocode(context.Background(), "Curitiba")
	assert.InDelta(t, -25.4284, coords.Lat, 0.001)
	assert.InDelta(t, -49.2733, coords.Lon, 0.001)
	assert.Equal(t, "Curitiba, Brazil", coords.Name)
}

func TestGeocodeFallsBackToSaoPaulo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient("key", time.Second, WithGeocodeURL(srv.URL))

	coords := c.Geocode(context.Background(), "Nowhereville XYZ")
	assert.InDelta(t, -23.5505, coords.Lat, 0.001)
	assert.InDelta(t, -46.6333, coords.Lon, 0.001)
	assert.Equal(t, "Nowhereville XYZ", coords.Name)
}

func TestForecastDemoKey(t *testing.T) {
	c := NewClient("demo", time.Second)

	f, err := c.Forecast(context.Background(), "Basel", "celsius")
	require.NoError(t, err)
	assert.Equal(t, "Basel", f.Location)
	assert.Equal(t, 25.0, f.Current.Temperature)
	assert.Equal(t, "°C", f.Current.Unit)
	assert.Equal(t, "Partly Cloudy", f.Current.Condition)

	f, err = c.Forecast(context.Background(), "Basel", "fahrenheit")
	require.NoError(t, err)
	assert.Equal(t, 77.0, f.Current.Temperature)
	assert.Equal(t, "°F", f.Current.Unit)
}

const meteobluePayload = `{
	"metadata": {"name": "Basel", "latitude": 47.56, "longitude": 7.57},
	"data_1h": {
		"time": ["2026-08-23 12:00", "2026-08-23 13:00"],
		"temperature": [21.37, 22.9],
		"felttemperature": [20.1, 21.5],
		"windspeed": [3.42, 4.0],
		"winddirection": [180.4, 190.0],
		"relativehumidity": [55.6, 60.0],
		"precipitation": [0.0, 0.3],
		"precipitation_probability": [10.2, 35.0],
		"pictocode": [2, 7],
		"uvindex": [4.6, 3.0]
	}
}`

func TestForecastFromAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("apikey"))
		assert.NotEmpty(t, r.URL.Query().Get("lat"))
		assert.NotEmpty(t, r.URL.Query().Get("lon"))
		w.Write([]byte(meteobluePayload))
	}))
	defer srv.Close()

	c := NewClient("secret", time.Second, WithForecastURL(srv.URL))

	f, err := c.Forecast(context.Background(), "Basel", "celsius")
	require.NoError(t, err)

	assert.Equal(t, "Basel", f.Location)
	assert.InDelta(t, 47.56, f.Coordinates.Lat, 0.001)

	assert.Equal(t, 21.4, f.Current.Temperature, "values are rounded to one decimal")
	assert.Equal(t, 20.1, f.Current.FeelsLike)
	assert.Equal(t, "Partly Cloudy", f.Current.Condition)
	assert.Equal(t, 56, f.Current.Humidity)
	assert.Equal(t, 10, f.Current.PrecipitationProbability)
	assert.Equal(t, 5, f.Current.UVIndex)
	assert.Empty(t, f.Current.Time)
	assert.Equal(t, "°C", f.Current.Unit)

	require.Len(t, f.Hourly, 2)
	assert.Equal(t, "2026-08-23 13:00", f.Hourly[1].Time)
	assert.Equal(t, "Rain", f.Hourly[1].Condition)

	assert.Contains(t, f.Summary, "Basel")
	assert.Contains(t, f.Summary, "partly cloudy")
}

func TestForecastFahrenheitConversion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(meteobluePayload))
	}))
	defer srv.Close()

	c := NewClient("secret", time.Second, WithForecastURL(srv.URL))

	f, err := c.Forecast(context.Background(), "Basel", "fahrenheit")
	require.NoError(t, err)

	// 21.37C -> 70.466F, rounded to 70.5.
	assert.Equal(t, 70.5, f.Current.Temperature)
	assert.Equal(t, "°F", f.Current.Unit)
}

func TestForecastUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient("badkey", time.Second, WithForecastURL(srv.URL))

	_, err := c.Forecast(context.Background(), "Basel", "celsius")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestHandlerRegistration(t *testing.T) {
	reg := function.NewRegistry()
	reg.Register(NewClient("demo", time.Second).Handler())

	res := reg.Execute(context.Background(), "get_weather", map[string]any{"location": "Tokyo"})
	require.True(t, res.Success, res.Error)

	f, ok := res.Result.(*Forecast)
	require.True(t, ok)
	assert.Equal(t, "Tokyo", f.Location)
	assert.Equal(t, "°C", f.Current.Unit, "units default to celsius")
}

func TestHandlerValidation(t *testing.T) {
	reg := function.NewRegistry()
	reg.Register(NewClient("demo", time.Second).Handler())

	res := reg.Execute(context.Background(), "get_weather", map[string]any{})
	assert.False(t, res.Success)
	assert.Equal(t, "Missing required parameter: location", res.Error)

	res = reg.Execute(context.Background(), "get_weather",
		map[string]any{"location": "Tokyo", "units": "kelvin"})
	assert.False(t, res.Success)
	assert.Equal(t, "Invalid value for parameter units: kelvin", res.Error)
}

func TestHandlerFoldsUpstreamFailureIntoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	reg := function.NewRegistry()
	reg.Register(NewClient("key", time.Second, WithForecastURL(srv.URL)).Handler())

	res := reg.Execute(context.Background(), "get_weather", map[string]any{"location": "Basel"})

	require.True(t, res.Success, "an upstream failure is data, not a failed call")
	payload, ok := res.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Basel", payload["location"])
	assert.Contains(t, payload["error"], "500")
}

func TestConditionMapping(t *testing.T) {
	assert.Equal(t, "Clear", condition(1))
	assert.Equal(t, "Thunderstorm", condition(9))
	assert.Equal(t, "Clear", condition(999), "unknown pictocodes default to Clear")
}
