package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// envelope is the response wrapper used by every catalog endpoint.
type envelope struct {
	Code    *int            `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Subject is the minimal projection of a catalog title shared by details and listings.
type Subject struct {
	SubjectID  ID     `json:"subjectId"`
	DetailPath string `json:"detailPath"`
	Title      string `json:"title"`
}

// Detail is a title's metadata record. Raw keeps the full payload for pass-through.
type Detail struct {
	Subject Subject
	Raw     json.RawMessage
}

// Listing is a page of titles. Raw keeps the full payload for pass-through.
type Listing struct {
	Items []Subject
	Raw   json.RawMessage
}

// Download is one encoding offered by the download endpoint.
type Download struct {
	URL        string  `json:"url"`
	Resolution *Number `json:"resolution"`
	Size       Number  `json:"size"`
}

// Downloads is the decoded download listing. Present is false when the payload has no
// downloads key at all.
type Downloads struct {
	Items   []Download
	Present bool
}

// ID is an identifier the backend sends either as a string or as a bare number.
type ID string

// UnmarshalJSON accepts strings, numbers, and null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("subject id: %w", err)
		}
		*id = ID(n.String())
	}
	return nil
}

// Number is an integer the backend sends as a number, a numeric string, or null.
type Number int64

// UnmarshalJSON accepts numbers, numeric strings, empty strings, and null (as zero).
func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}

	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*n = 0
			return nil
		}
	}

	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		*n = Number(v)
		return nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", s)
	}
	*n = Number(f)
	return nil
}
