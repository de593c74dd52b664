package fields

import "fmt"

// Section is one logical table of fields, named after the caption that
// introduces it ("Figure N. Fields in the <NAME> data file").
type Section struct {
	Name string `json:"name"`
}

// FieldRecord is one output row of the extraction.
type FieldRecord struct {
	Section          string `json:"section"`
	FieldName        string `json:"field_name"`
	FieldDescription string `json:"field_description"`
}

// SectionResult holds the records and counters produced for one section span.
type SectionResult struct {
	Section     Section       `json:"section"`
	Index       int           `json:"index"`
	HeaderFound bool          `json:"header_found"`
	Skipped     bool          `json:"skipped"`
	Records     []FieldRecord `json:"records"`

	// Lines is the number of non-blank, non-separator lines examined.
	Lines       int `json:"lines"`
	Orphans     int `json:"orphans"`
	Merges      int `json:"merges"`
	Retractions int `json:"retractions"`
	Duplicates  int `json:"duplicates"`
}

// Warnings returns the soft warnings for this section. A section without a
// header or without records is reported, never treated as an error.
func (s *SectionResult) Warnings() []string {
	var warnings []string
	if !s.HeaderFound {
		if s.Skipped {
			warnings = append(warnings, fmt.Sprintf("section %q: table header not found, section skipped", s.Section.Name))
		} else {
			warnings = append(warnings, fmt.Sprintf("section %q: table header not found, whole span parsed as table body", s.Section.Name))
		}
	}
	if !s.Skipped && len(s.Records) == 0 {
		warnings = append(warnings, fmt.Sprintf("section %q: no field records extracted", s.Section.Name))
	}
	return warnings
}

// Document is the result of parsing one linearized text.
type Document struct {
	Sections []*SectionResult `json:"sections"`
}

// Records returns all records in section order, then row order.
func (d *Document) Records() []FieldRecord {
	var records []FieldRecord
	for _, section := range d.Sections {
		records = append(records, section.Records...)
	}
	if records == nil {
		records = []FieldRecord{}
	}
	return records
}

// Unsupported reports whether no section caption was found at all. Callers
// should treat this as an unsupported layout rather than a failure.
func (d *Document) Unsupported() bool {
	return len(d.Sections) == 0
}

// Warnings returns the soft warnings of every section in order.
func (d *Document) Warnings() []string {
	var warnings []string
	if d.Unsupported() {
		return []string{"no \"Figure N. Fields in the ... data file\" captions found"}
	}
	for _, section := range d.Sections {
		warnings = append(warnings, section.Warnings()...)
	}
	return warnings
}

// Statistics summarizes a parsed document.
type Statistics struct {
	Sections          int `json:"sections"`
	HeadersMissing    int `json:"headers_missing"`
	EmptySections     int `json:"empty_sections"`
	Records           int `json:"records"`
	EmptyDescriptions int `json:"empty_descriptions"`
	Orphans           int `json:"orphans"`
	Merges            int `json:"merges"`
	Duplicates        int `json:"duplicates"`
}

// Statistics returns statistics about the parsed document.
func (d *Document) Statistics() Statistics {
	stats := Statistics{Sections: len(d.Sections)}

	for _, section := range d.Sections {
		if !section.HeaderFound {
			stats.HeadersMissing++
		}
		if len(section.Records) == 0 {
			stats.EmptySections++
		}
		stats.Records += len(section.Records)
		stats.Orphans += section.Orphans
		stats.Merges += section.Merges
		stats.Duplicates += section.Duplicates

		for _, record := range section.Records {
			if record.FieldDescription == "" {
				stats.EmptyDescriptions++
			}
		}
	}

	return stats
}
