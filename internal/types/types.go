package types

import (
	"database/sql"
	"errors"
)

// ErrInvalidTree is returned when a URL tree document does not have the
// continent -> countries -> cities object shape.
var ErrInvalidTree = errors.New("invalid url tree")

// City is a leaf of the URL tree: one city page holding a climate table.
type City struct {
	Name string
	URL  string
}

// Country holds the cities discovered on a country page.
type Country struct {
	Name   string
	URL    string
	Cities []*City
}

// Continent holds the countries discovered on a continent page.
type Continent struct {
	Name      string
	URL       string
	Countries []*Country
}

// Tree is the continent -> country -> city link hierarchy. Entries keep the
// order they were first added in; setting an existing label replaces its
// value in place.
type Tree struct {
	Continents []*Continent
}

// FlatRow is one line of the flattened tree view. Countries without cities
// produce a single row with empty city fields.
type FlatRow struct {
	Continent  string
	Country    string
	CountryURL string
	City       string
	CityURL    string
}

// Target is a single city page queued for table extraction.
type Target struct {
	Continent string
	Country   string
	City      string
	URL       string
}

// Levels of the hierarchy, used in skip reports.
const (
	LevelContinent = "continent"
	LevelCountry   = "country"
	LevelCity      = "city"
)

// Skip records an item whose page could not be used. The run goes on
// without it.
type Skip struct {
	Level string
	Name  string
	URL   string
	Err   error
}

// Cell is a nullable tidy-table value. An invalid cell is the null marker.
type Cell = sql.NullString

// Schema is the fixed column order of the tidy dataset.
var Schema = []string{
	"Continent",
	"Country",
	"City",
	"Month",
	"Avg. Temperature (°F)",
	"Avg. Temperature (°C)",
	"Min. Temperature (°F)",
	"Min. Temperature (°C)",
	"Max. Temperature (°F)",
	"Max. Temperature (°C)",
	"Precipitation / Rainfall (in)",
	"Precipitation / Rainfall (mm)",
	"Humidity(%)",
	"Rainy days (d)",
	"avg. Sun hours (hours)",
}

// Months labels the reshaped rows of a city table, in calendar order.
var Months = []string{
	"January",
	"February",
	"March",
	"April",
	"May",
	"June",
	"July",
	"August",
	"September",
	"October",
	"November",
	"December",
}

// Record is one city-month row aligned to Schema.
type Record []Cell

// Get returns the value of the named schema column.
func (r Record) Get(column string) Cell {
	for i, name := range Schema {
		if name == column && i < len(r) {
			return r[i]
		}
	}
	return Cell{}
}

// Dataset is the concatenation of all city-month records.
type Dataset struct {
	Rows []Record
}

// Append adds records to the dataset.
func (d *Dataset) Append(records ...Record) {
	d.Rows = append(d.Rows, records...)
}

// Len returns the number of rows collected.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// Empty reports whether no rows were collected.
func (d *Dataset) Empty() bool {
	return d.Len() == 0
}

// Head returns at most n leading rows.
func (d *Dataset) Head(n int) []Record {
	if n > d.Len() {
		n = d.Len()
	}
	if n <= 0 {
		return nil
	}
	return d.Rows[:n]
}
