package hookengine

import (
	"testing"

	"github.com/hookguard/hookguard/internal/ledger"
)

// TestClassifyMutation_MarkerFamilies enumerates a positive and a negative
// case per marker family in intentEvolutionMarkers (design doc §8).
func TestClassifyMutation_MarkerFamilies(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    ledger.MutationClass
	}{
		{
			name:    "js export class is evolution",
			content: "export class WeatherService {}",
			want:    ledger.MutationIntentEvolution,
		},
		{
			name:    "js export const is evolution",
			content: "export const API_BASE = 'https://example.com';",
			want:    ledger.MutationIntentEvolution,
		},
		{
			name:    "js named export list is evolution",
			content: "export { celsiusToFahrenheit, kelvinToCelsius };",
			want:    ledger.MutationIntentEvolution,
		},
		{
			name:    "js internal helper call is AST refactor",
			content: "const temp = celsiusToFahrenheit(input);",
			want:    ledger.MutationASTRefactor,
		},
		{
			name:    "rust pub fn is evolution",
			content: "pub fn fetch_forecast(city: &str) -> Forecast {",
			want:    ledger.MutationIntentEvolution,
		},
		{
			name:    "rust pub struct is evolution",
			content: "pub struct Forecast { temp_c: f64 }",
			want:    ledger.MutationIntentEvolution,
		},
		{
			name:    "rust private fn is AST refactor",
			content: "fn round_temp(c: f64) -> f64 { c.round() }",
			want:    ledger.MutationASTRefactor,
		},
		{
			name:    "java public class is evolution",
			content: "public class WeatherController {",
			want:    ledger.MutationIntentEvolution,
		},
		{
			name:    "java public interface is evolution",
			content: "public interface ForecastProvider {",
			want:    ledger.MutationIntentEvolution,
		},
		{
			name:    "java private method is AST refactor",
			content: "private double round(double c) { return Math.round(c); }",
			want:    ledger.MutationASTRefactor,
		},
		{
			name:    "go exported top-level func is evolution",
			content: "func FetchForecast(city string) (*Forecast, error) {",
			want:    ledger.MutationIntentEvolution,
		},
		{
			name:    "go exported struct type is evolution",
			content: "type Forecast struct {\n\tTempC float64\n}",
			want:    ledger.MutationIntentEvolution,
		},
		{
			name:    "go unexported func is AST refactor",
			content: "func roundTemp(c float64) float64 {\n\treturn math.Round(c)\n}",
			want:    ledger.MutationASTRefactor,
		},
		{
			name:    "http router registration is evolution",
			content: "router.Get(\"/forecast/:city\", handleForecast)",
			want:    ledger.MutationIntentEvolution,
		},
		{
			name:    "spring mapping annotation is evolution",
			content: "@GetMapping(\"/forecast/{city}\")",
			want:    ledger.MutationIntentEvolution,
		},
		{
			name:    "route handler body edit is AST refactor",
			content: "w.WriteHeader(http.StatusOK)\nw.Write(body)",
			want:    ledger.MutationASTRefactor,
		},
		{
			name:    "sql create table is evolution",
			content: "CREATE TABLE forecasts (city TEXT, temp_c REAL);",
			want:    ledger.MutationIntentEvolution,
		},
		{
			name:    "sql alter table is evolution",
			content: "ALTER TABLE forecasts ADD COLUMN humidity REAL;",
			want:    ledger.MutationIntentEvolution,
		},
		{
			name:    "migrate up marker is evolution",
			content: "-- +migrate Up\nCREATE TABLE forecasts (city TEXT);",
			want:    ledger.MutationIntentEvolution,
		},
		{
			name:    "sql select statement is AST refactor",
			content: "SELECT city, temp_c FROM forecasts WHERE city = ?;",
			want:    ledger.MutationASTRefactor,
		},
		{
			name:    "empty content is AST refactor",
			content: "",
			want:    ledger.MutationASTRefactor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyMutation(tt.content)
			if got != tt.want {
				t.Errorf("classifyMutation(%q) = %s, want %s", tt.content, got, tt.want)
			}
		})
	}
}
