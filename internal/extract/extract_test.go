package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const countrySelector = "ul.f16 li a[data-modified-href], ul.f16 li a"

func TestExtractLinks(t *testing.T) {
	markup := `<html><body><ul class="f16">
		<li><a href="/europe/france-5/" data-modified-href="1">  France </a></li>
		<li><a href="https://en.climate-data.org/europe/spain-6/">Spain</a></li>
		<li><a href="">Nowhere</a></li>
		<li><a href="/europe/empty/">   </a></li>
		<li><a href="/europe/united-kingdom-9/">United
			Kingdom</a></li>
		<li><a href="/europe/france-new/">France</a></li>
	</ul></body></html>`

	links, err := ExtractLinks(markup, "https://en.climate-data.org/continent/europe/", countrySelector, 0)
	require.NoError(t, err)

	assert.Equal(t, Links{
		{Label: "France", URL: "https://en.climate-data.org/europe/france-new/"},
		{Label: "Spain", URL: "https://en.climate-data.org/europe/spain-6/"},
		{Label: "United Kingdom", URL: "https://en.climate-data.org/europe/united-kingdom-9/"},
	}, links)
}

func TestExtractLinks_Limit(t *testing.T) {
	markup := `<ul class="f16">
		<li><a href="/a">A</a></li>
		<li><a href="/skip"></a></li>
		<li><a href="/b">B</a></li>
		<li><a href="/c">C</a></li>
		<li><a href="/d">D</a></li>
		<li><a href="/e">E</a></li>
	</ul>`

	links, err := ExtractLinks(markup, "https://example.test/", countrySelector, 2)
	require.NoError(t, err)

	require.Len(t, links, 2)
	assert.Equal(t, "A", links[0].Label)
	assert.Equal(t, "B", links[1].Label)
}

func TestExtractLinks_CityColumn(t *testing.T) {
	markup := `<table>
		<tr><th>#</th><th>Name</th><th>Region</th><th>City</th></tr>
		<tr><td>1</td><td>x</td><td>y</td><td><a href="/europe/france/paris-44/">Paris</a></td></tr>
		<tr><td>2</td><td><a href="/wrong">Wrong</a></td><td>y</td><td><a href="/europe/france/lyon-45/">Lyon</a></td></tr>
	</table>`

	links, err := ExtractLinks(markup, "https://en.climate-data.org/europe/france-5/", "table tr td:nth-child(4) a", 0)
	require.NoError(t, err)

	require.Len(t, links, 2)
	url, ok := links.Get("Lyon")
	assert.True(t, ok)
	assert.Equal(t, "https://en.climate-data.org/europe/france/lyon-45/", url)
	_, ok = links.Get("Wrong")
	assert.False(t, ok)
}

func TestExtractLinks_NoMatches(t *testing.T) {
	links, err := ExtractLinks(`<p>nothing</p>`, "", countrySelector, 0)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestExtractTable_PreferredID(t *testing.T) {
	markup := `<html><body>
		<table><tr><td>decoy</td></tr></table>
		<table id="weather_table">
			<thead><tr><td></td><td>January</td><td>February</td></tr></thead>
			<tbody>
				<tr><td>Avg. Temperature °C (°F)</td><td>21.9 °C<br> (71.4) °F</td><td>22 °C<br>(72) °F</td></tr>
				<tr><td>Humidity(%)</td><td> 82% </td><td></td></tr>
				<tr><td></td><td></td></tr>
			</tbody>
		</table>
	</body></html>`

	grid, err := ExtractTable(markup, "weather_table")
	require.NoError(t, err)

	assert.Equal(t, Grid{
		{"January", "February"},
		{"Avg. Temperature °C (°F)", "21.9 °C(71.4) °F", "22 °C(72) °F"},
		{"Humidity(%)", "82%"},
	}, grid)
	assert.Equal(t, 3, grid.Width())
}

func TestExtractTable_FallsBackToFirstTable(t *testing.T) {
	markup := `<div><table>
		<tr><td>Month</td><td>Jan</td></tr>
		<tr><td>Rainy days (d)</td><td>7</td></tr>
	</table><table><tr><td>second</td></tr></table></div>`

	grid, err := ExtractTable(markup, "weather_table")
	require.NoError(t, err)
	assert.Equal(t, Grid{{"Month", "Jan"}, {"Rainy days (d)", "7"}}, grid)
}

func TestExtractTable_IDOnWrapper(t *testing.T) {
	markup := `<table><tr><td>decoy</td></tr></table>
		<div id="weather_table"><table><tr><td>inner</td></tr></table></div>`

	grid, err := ExtractTable(markup, "weather_table")
	require.NoError(t, err)
	assert.Equal(t, Grid{{"inner"}}, grid)
}

func TestExtractTable_Errors(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   error
	}{
		{"no table", `<p>nothing here</p>`, ErrNoTable},
		{"header cells only", `<table><tr><th>Month</th></tr></table>`, ErrEmptyTable},
		{"blank cells", `<table><tr><td> </td><td></td></tr></table>`, ErrEmptyTable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractTable(tt.markup, "weather_table")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
