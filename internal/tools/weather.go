package tools

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
)

// Mock temperature range: the lowest and highest air temperatures on record.
const (
	minTemperature = -89.2
	maxTemperature = 56.7
)

// maxForecastDays caps num_days; the schema declares it as the maximum.
const maxForecastDays = 16

type CurrentWeatherInput struct {
	Location string `json:"location" jsonschema_description:"The city and state, e.g. San Francisco, CA"`
	Format   string `json:"format" jsonschema:"enum=celsius,enum=fahrenheit" jsonschema_description:"The temperature unit to use. Infer this from the users location."`
}

type ForecastInput struct {
	Location string `json:"location" jsonschema_description:"The city and state, e.g. San Francisco, CA"`
	Format   string `json:"format" jsonschema:"enum=celsius,enum=fahrenheit" jsonschema_description:"The temperature unit to use. Infer this from the users location."`
	NumDays  int    `json:"num_days" jsonschema:"maximum=16" jsonschema_description:"The number of days to forecast"`
}

// DailyTemperature is one day of a forecast.
type DailyTemperature struct {
	Day         int     `json:"day"`
	Temperature float64 `json:"temperature"`
}

// WeatherReport is the result of both weather tools. Only Error is set when
// the request cannot be served.
type WeatherReport struct {
	Location    string             `json:"location,omitempty"`
	Format      string             `json:"format,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	Days        []DailyTemperature `json:"days,omitempty"`
	Summary     string             `json:"summary,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// WeatherService produces mock weather readings. It is safe for concurrent use.
type WeatherService struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewWeatherService creates a WeatherService drawing from src.
// A nil src uses a randomly seeded PCG source.
func NewWeatherService(src rand.Source) *WeatherService {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &WeatherService{rng: rand.New(src)}
}

func (w *WeatherService) temperature() float64 {
	w.mu.Lock()
	f := w.rng.Float64()
	w.mu.Unlock()
	t := minTemperature + f*(maxTemperature-minTemperature)
	return math.Round(t*10) / 10
}

// Current returns a single mock reading for the location.
func (w *WeatherService) Current(_ context.Context, in CurrentWeatherInput) (WeatherReport, error) {
	t := w.temperature()
	return WeatherReport{
		Location:    in.Location,
		Format:      in.Format,
		Temperature: &t,
		Summary:     fmt.Sprintf("The current weather in %s: %.1f in %s", in.Location, t, in.Format),
	}, nil
}

// Forecast returns one mock reading per requested day.
func (w *WeatherService) Forecast(_ context.Context, in ForecastInput) (WeatherReport, error) {
	if in.NumDays < 1 {
		return WeatherReport{Error: "num_days must be at least 1"}, nil
	}
	if in.NumDays > maxForecastDays {
		return WeatherReport{Error: fmt.Sprintf("num_days must be at most %d", maxForecastDays)}, nil
	}

	days := make([]DailyTemperature, in.NumDays)
	lines := make([]string, in.NumDays)
	for i := range days {
		t := w.temperature()
		days[i] = DailyTemperature{Day: i + 1, Temperature: t}
		lines[i] = fmt.Sprintf("Day %d in %s: %.1f in %s", i+1, in.Location, t, in.Format)
	}
	return WeatherReport{
		Location: in.Location,
		Format:   in.Format,
		Days:     days,
		Summary:  strings.Join(lines, "\n"),
	}, nil
}

// NewCurrentWeatherTool returns the get_current_weather tool backed by w.
func NewCurrentWeatherTool(w *WeatherService) *FuncTool[CurrentWeatherInput, WeatherReport] {
	return NewFunc(string(ToolCurrentWeather), "Get the current weather", w.Current)
}

// NewForecastTool returns the get_n_day_weather_forecast tool backed by w.
func NewForecastTool(w *WeatherService) *FuncTool[ForecastInput, WeatherReport] {
	return NewFunc(string(ToolWeatherForecast), "Get an N-day weather forecast", w.Forecast)
}
