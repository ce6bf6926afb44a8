package core

// ResolveColumns maps each field of a dataset to the first of its candidate
// labels present in labels. Matching is exact and case-sensitive. Optional
// fields without a match are left out of the mapping; a required field
// without a match returns *SchemaMismatchError.
func ResolveColumns(labels []string, fields []FieldSpec) (ColumnMapping, error) {
	present := make(map[string]bool, len(labels))
	for _, l := range labels {
		present[l] = true
	}

	mapping := make(ColumnMapping, len(fields))
	for _, f := range fields {
		label, ok := firstPresent(f.Candidates, present)
		if ok {
			mapping[f.Key] = label
			continue
		}
		if f.Required {
			return nil, &SchemaMismatchError{
				Key:        f.Key,
				Candidates: append([]string(nil), f.Candidates...),
				Labels:     append([]string(nil), labels...),
			}
		}
	}

	return mapping, nil
}

func firstPresent(candidates []string, present map[string]bool) (string, bool) {
	for _, c := range candidates {
		if present[c] {
			return c, true
		}
	}
	return "", false
}
