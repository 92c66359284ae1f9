package moex

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"regexp"

	"github.com/PaesslerAG/jsonpath"
)

var blockName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ParseMarkup returns the rows of the <data id="section"> block of an ISS
// XML document. Each row's attributes become the record's fields. Empty or
// malformed documents yield no records.
func ParseMarkup(body []byte, section string) []Record {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	dec := xml.NewDecoder(bytes.NewReader(body))
	var (
		out    []Record
		inside bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			return nil
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "data":
				inside = attr(t, "id") == section
			case "row":
				if !inside {
					continue
				}
				rec := make(Record, len(t.Attr))
				for _, a := range t.Attr {
					rec[a.Name.Local] = a.Value
				}
				out = append(out, rec)
			}
		case xml.EndElement:
			if t.Name.Local == "data" {
				inside = false
			}
		}
	}
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// ParseTable returns the rows of a tabular ISS JSON block
// ({"block": {"columns": [...], "data": [[...], ...]}}). Rows shorter than
// the header carry only the columns they have. Anything else yields no
// records.
func ParseTable(body []byte, block string) []Record {
	if !blockName.MatchString(block) || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil
	}

	raw, err := jsonpath.Get("$."+block, doc)
	if err != nil {
		return nil
	}
	tbl, ok := raw.(map[string]interface{})
	if !ok {
		return nil
	}
	cols, ok := tbl["columns"].([]interface{})
	if !ok {
		return nil
	}
	rows, ok := tbl["data"].([]interface{})
	if !ok {
		return nil
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		s, ok := c.(string)
		if !ok {
			return nil
		}
		names[i] = s
	}

	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		cells, ok := r.([]interface{})
		if !ok {
			continue
		}
		rec := make(Record, len(names))
		for i, name := range names {
			if i >= len(cells) {
				break
			}
			rec[name] = cells[i]
		}
		out = append(out, rec)
	}
	return out
}

// Parse dispatches on the payload's format.
func Parse(p *Payload, section string) []Record {
	if p == nil {
		return nil
	}
	if p.Format == FormatXML {
		return ParseMarkup(p.Body, section)
	}
	return ParseTable(p.Body, section)
}
