package hub

// Todo item status values used by the hub's todo integration.
const (
	StatusNeedsAction = "needs_action"
	StatusCompleted   = "completed"
)

// EntityState is the raw state record of a single entity.
type EntityState struct {
	EntityID    string                 `json:"entity_id"`
	State       string                 `json:"state"`
	Attributes  map[string]interface{} `json:"attributes"`
	LastChanged string                 `json:"last_changed"`
}

// Weather holds current conditions from a weather entity.
// Numeric fields are nil when the hub did not report them.
type Weather struct {
	State           string   `json:"state"`
	Temperature     *float64 `json:"temperature,omitempty"`
	TemperatureUnit string   `json:"temperature_unit"`
	Humidity        *float64 `json:"humidity,omitempty"`
	WindSpeed       *float64 `json:"wind_speed,omitempty"`
	WindSpeedUnit   string   `json:"wind_speed_unit"`
	Pressure        *float64 `json:"pressure,omitempty"`
	CloudCoverage   *float64 `json:"cloud_coverage,omitempty"`
	FriendlyName    string   `json:"friendly_name"`
}

// ForecastDay is one day of a daily weather forecast.
type ForecastDay struct {
	Date              string   `json:"date"`
	Condition         string   `json:"condition"`
	TempHigh          *float64 `json:"temperature,omitempty"`
	TempLow           *float64 `json:"templow,omitempty"`
	PrecipProbability *float64 `json:"precipitation_probability,omitempty"`
	Humidity          *float64 `json:"humidity,omitempty"`
	WindSpeed         *float64 `json:"wind_speed,omitempty"`
}

// TodoItem is one entry of a todo list entity.
type TodoItem struct {
	UID         string `json:"uid"`
	Summary     string `json:"summary"`
	Status      string `json:"status"`
	Due         string `json:"due,omitempty"`
	Description string `json:"description,omitempty"`
}

// CalendarEvent is one calendar entry. Start is either an ISO8601 timestamp
// or a date-only string for all-day events.
type CalendarEvent struct {
	Summary     string `json:"summary"`
	Start       string `json:"start"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

// BinarySensor is the display-relevant slice of a binary sensor state.
type BinarySensor struct {
	State        string `json:"state"`
	LastChanged  string `json:"last_changed"`
	FriendlyName string `json:"friendly_name"`
}

// Sun holds sun position data from the sun entity.
type Sun struct {
	State       string  `json:"state"`
	NextRising  string  `json:"next_rising,omitempty"`
	NextSetting string  `json:"next_setting,omitempty"`
	Elevation   float64 `json:"elevation"`
	Rising      bool    `json:"rising"`
}

// conditionNames maps hub weather condition codes to display text.
var conditionNames = map[string]string{
	"clear-night":     "Clear",
	"cloudy":          "Cloudy",
	"fog":             "Foggy",
	"hail":            "Hail",
	"lightning":       "Lightning",
	"lightning-rainy": "Thunderstorm",
	"partlycloudy":    "Partly Cloudy",
	"pouring":         "Heavy Rain",
	"rainy":           "Rainy",
	"snowy":           "Snowy",
	"snowy-rainy":     "Snow/Rain Mix",
	"sunny":           "Sunny",
	"windy":           "Windy",
	"windy-variant":   "Windy",
	"exceptional":     "Exceptional",
}

// FormatCondition converts a hub weather condition code to display-friendly text.
func FormatCondition(condition string) string {
	if name, ok := conditionNames[condition]; ok {
		return name
	}
	return titleCase(condition)
}

// titleCase turns "partly-cloudy" into "Partly Cloudy".
func titleCase(s string) string {
	out := []rune(s)
	upper := true
	for i, r := range out {
		if r == '-' {
			out[i] = ' '
			upper = true
			continue
		}
		if upper && r >= 'a' && r <= 'z' {
			out[i] = r - 32
		}
		upper = false
	}
	return string(out)
}
