package normalize

import (
	"regexp"
	"strings"

	"github.com/go-scripts/climate/internal/extract"
	"github.com/go-scripts/climate/internal/types"
)

// Source column labels as they appear on a city page.
const (
	AvgTemperature = "Avg. Temperature °C (°F)"
	MinTemperature = "Min. Temperature °C (°F)"
	MaxTemperature = "Max. Temperature °C (°F)"
	Precipitation  = "Precipitation / Rainfall mm (in)"
	Humidity       = "Humidity(%)"
	SunHours       = "avg. Sun hours (hours)"
)

var (
	temperatureLabel = regexp.MustCompile(`(?i)^(Avg|Min|Max)\.?\s*Temperature`)
	fahrenheit       = regexp.MustCompile(`\((-?[0-9.]+)\)\s*°F`)
	celsius          = regexp.MustCompile(`^(-?[0-9.]+)\s*°C`)
	leadingDigits    = regexp.MustCompile(`^(\d+)`)
	parenDigits      = regexp.MustCompile(`\((\d+)`)
	anyDigits        = regexp.MustCompile(`(\d+)`)
)

// Location identifies the city a table belongs to.
type Location struct {
	Continent string
	Country   string
	City      string
}

// Result is a normalized city table.
type Result struct {
	Records []types.Record
	// Truncated counts data rows beyond the twelfth month that were dropped.
	Truncated int
}

// Normalize runs the whole transform chain on a scraped grid.
func Normalize(grid extract.Grid, loc Location) Result {
	f, truncated := Reshape(grid)
	AttachMetadata(f, loc)
	BackfillSunHours(f)
	for _, col := range []string{AvgTemperature, MinTemperature, MaxTemperature} {
		SplitTemperature(f, col)
	}
	SplitPrecipitation(f, Precipitation)
	CleanHumidity(f, Humidity)
	return Result{Records: Reorder(f), Truncated: truncated}
}

// Reshape transposes the grid. The first cell of every table row becomes a
// column header and the remaining cells become the month rows, so the frame
// always has one row per month. Missing cells are null. Data cells beyond
// the twelfth are dropped and counted. A repeated header keeps its first
// occurrence.
func Reshape(grid extract.Grid) (*Frame, int) {
	months := len(types.Months)
	f := NewFrame(months)
	truncated := 0
	if w := grid.Width() - 1; w > months {
		truncated = w - months
	}

	for _, row := range grid {
		if len(row) == 0 || f.Has(row[0]) {
			continue
		}
		values := make([]types.Cell, 0, len(row)-1)
		for _, cell := range row[1:] {
			values = append(values, value(cell))
		}
		f.Set(row[0], values)
	}
	return f, truncated
}

// AttachMetadata adds the location and month columns.
func AttachMetadata(f *Frame, loc Location) {
	f.Fill("Continent", value(loc.Continent))
	f.Fill("Country", value(loc.Country))
	f.Fill("City", value(loc.City))
	months := make([]types.Cell, len(types.Months))
	for i, m := range types.Months {
		months[i] = value(m)
	}
	f.Set("Month", months)
}

// BackfillSunHours replaces null sun hours with 0 and creates the column
// when the page has none.
func BackfillSunHours(f *Frame) {
	values := f.Values(SunHours)
	filled := make([]types.Cell, f.Rows())
	for i := range filled {
		if i < len(values) && values[i].Valid {
			filled[i] = values[i]
			continue
		}
		filled[i] = value("0")
	}
	f.Set(SunHours, filled)
}

// SplitTemperature splits a "21.9 °C (71.4) °F" column into "<label> (°F)"
// and "<label> (°C)" columns and drops the source column.
func SplitTemperature(f *Frame, column string) {
	if !f.Has(column) {
		return
	}
	label := column
	if m := temperatureLabel.FindString(column); m != "" {
		label = m
	}

	source := f.Values(column)
	fahr := make([]types.Cell, len(source))
	cels := make([]types.Cell, len(source))
	for i, cell := range source {
		if !cell.Valid {
			continue
		}
		s := strings.ReplaceAll(cell.String, "\n", " (")
		if !strings.HasSuffix(s, ")") {
			s += ")"
		}
		fahr[i] = submatch(fahrenheit, s)
		cels[i] = submatch(celsius, s)
	}

	f.Set(label+" (°F)", fahr)
	f.Set(label+" (°C)", cels)
	f.Drop(column)
}

// SplitPrecipitation splits "40 (1.6)" into millimetres and whole inches.
func SplitPrecipitation(f *Frame, column string) {
	if !f.Has(column) {
		return
	}
	source := f.Values(column)
	mm := make([]types.Cell, len(source))
	in := make([]types.Cell, len(source))
	for i, cell := range source {
		if !cell.Valid {
			continue
		}
		mm[i] = submatch(leadingDigits, cell.String)
		in[i] = submatch(parenDigits, cell.String)
	}
	f.Set("Precipitation / Rainfall (mm)", mm)
	f.Set("Precipitation / Rainfall (in)", in)
	f.Drop(column)
}

// CleanHumidity keeps the first run of digits of each humidity value.
func CleanHumidity(f *Frame, column string) {
	if !f.Has(column) {
		return
	}
	source := f.Values(column)
	cleaned := make([]types.Cell, len(source))
	for i, cell := range source {
		if cell.Valid {
			cleaned[i] = submatch(anyDigits, cell.String)
		}
	}
	f.Set(column, cleaned)
}

// Reorder projects the frame onto types.Schema. Columns outside the schema
// are discarded; absent ones are null.
func Reorder(f *Frame) []types.Record {
	records := make([]types.Record, f.Rows())
	for i := range records {
		records[i] = make(types.Record, len(types.Schema))
	}
	for j, name := range types.Schema {
		values := f.Values(name)
		for i := range records {
			if i < len(values) {
				records[i][j] = values[i]
			}
		}
	}
	return records
}

func submatch(re *regexp.Regexp, s string) types.Cell {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return types.Cell{}
	}
	return value(m[1])
}
