package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// AddContinent sets a continent seed. An existing continent with the same
// name keeps its position but gets the new URL and loses its countries.
func (t *Tree) AddContinent(name, url string) *Continent {
	if c := t.Continent(name); c != nil {
		c.URL = url
		c.Countries = nil
		return c
	}
	c := &Continent{Name: name, URL: url}
	t.Continents = append(t.Continents, c)
	return c
}

// Continent returns the named continent or nil.
func (t *Tree) Continent(name string) *Continent {
	for _, c := range t.Continents {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// SetCountry stores a country under its label. A repeated label overwrites
// the previous entry, including its cities.
func (c *Continent) SetCountry(name, url string) *Country {
	if country := c.Country(name); country != nil {
		country.URL = url
		country.Cities = nil
		return country
	}
	country := &Country{Name: name, URL: url}
	c.Countries = append(c.Countries, country)
	return country
}

// Country returns the named country or nil.
func (c *Continent) Country(name string) *Country {
	for _, country := range c.Countries {
		if country.Name == name {
			return country
		}
	}
	return nil
}

// SetCity stores a city under its label, last write wins.
func (c *Country) SetCity(name, url string) *City {
	for _, city := range c.Cities {
		if city.Name == name {
			city.URL = url
			return city
		}
	}
	city := &City{Name: name, URL: url}
	c.Cities = append(c.Cities, city)
	return city
}

// CountryCount returns the number of countries across all continents.
func (t *Tree) CountryCount() int {
	n := 0
	for _, c := range t.Continents {
		n += len(c.Countries)
	}
	return n
}

// CityCount returns the number of cities across the whole tree.
func (t *Tree) CityCount() int {
	n := 0
	for _, c := range t.Continents {
		for _, country := range c.Countries {
			n += len(country.Cities)
		}
	}
	return n
}

// Flatten returns the tabular view of the tree in insertion order.
func (t *Tree) Flatten() []FlatRow {
	var rows []FlatRow
	for _, c := range t.Continents {
		for _, country := range c.Countries {
			if len(country.Cities) == 0 {
				rows = append(rows, FlatRow{
					Continent:  c.Name,
					Country:    country.Name,
					CountryURL: country.URL,
				})
				continue
			}
			for _, city := range country.Cities {
				rows = append(rows, FlatRow{
					Continent:  c.Name,
					Country:    country.Name,
					CountryURL: country.URL,
					City:       city.Name,
					CityURL:    city.URL,
				})
			}
		}
	}
	return rows
}

// Targets lists every city of the tree as a work item.
func (t *Tree) Targets() []Target {
	var targets []Target
	for _, c := range t.Continents {
		for _, country := range c.Countries {
			for _, city := range country.Cities {
				targets = append(targets, Target{
					Continent: c.Name,
					Country:   country.Name,
					City:      city.Name,
					URL:       city.URL,
				})
			}
		}
	}
	return targets
}

// MarshalJSON writes the tree as nested objects keyed by label, keeping
// insertion order:
//
//	{"Europe": {"url": "...", "countries": {"France": {"url": "...", "cities": {"Paris": {"url": "..."}}}}}}
func (t Tree) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range t.Continents {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeString(&buf, c.Name)
		buf.WriteString(`:{"url":`)
		writeString(&buf, c.URL)
		buf.WriteString(`,"countries":{`)
		for j, country := range c.Countries {
			if j > 0 {
				buf.WriteByte(',')
			}
			writeString(&buf, country.Name)
			buf.WriteString(`:{"url":`)
			writeString(&buf, country.URL)
			buf.WriteString(`,"cities":{`)
			for k, city := range country.Cities {
				if k > 0 {
					buf.WriteByte(',')
				}
				writeString(&buf, city.Name)
				buf.WriteString(`:{"url":`)
				writeString(&buf, city.URL)
				buf.WriteByte('}')
			}
			buf.WriteString("}}")
		}
		buf.WriteString("}}")
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the nested object form, preserving key order. Missing
// or null "countries"/"cities" members yield empty branches; a url that is
// not a string is kept as "" so the caller can skip that entry.
func (t *Tree) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	var tree Tree

	err := eachKey(dec, func(name string) error {
		continent := tree.AddContinent(name, "")
		return eachKey(dec, func(field string) error {
			switch field {
			case "url":
				return decodeURL(dec, &continent.URL)
			case "countries":
				return eachKey(dec, func(name string) error {
					country := continent.SetCountry(name, "")
					return eachKey(dec, func(field string) error {
						switch field {
						case "url":
							return decodeURL(dec, &country.URL)
						case "cities":
							return eachKey(dec, func(name string) error {
								city := country.SetCity(name, "")
								return eachKey(dec, func(field string) error {
									if field == "url" {
										return decodeURL(dec, &city.URL)
									}
									return skipValue(dec)
								})
							})
						default:
							return skipValue(dec)
						}
					})
				})
			default:
				return skipValue(dec)
			}
		})
	})
	if err != nil {
		return err
	}

	*t = tree
	return nil
}

// eachKey consumes one JSON object from dec, calling fn for every key with
// the decoder positioned at the key's value. A JSON null is an empty object.
func eachKey(dec *json.Decoder, fn func(key string) error) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTree, err)
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: expected object, got %v", ErrInvalidTree, tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTree, err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("%w: expected key, got %v", ErrInvalidTree, keyTok)
		}
		if err := fn(key); err != nil {
			return err
		}
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTree, err)
	}
	return nil
}

func decodeURL(dec *json.Decoder, dst *string) error {
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTree, err)
	}
	s, _ := v.(string)
	*dst = s
	return nil
}

func skipValue(dec *json.Decoder) error {
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTree, err)
	}
	return nil
}

// writeString appends s as a JSON string without HTML escaping, so URLs with
// query strings stay readable in the written file.
func writeString(buf *bytes.Buffer, s string) {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
}
