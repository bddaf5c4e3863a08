package routine

import "strings"

// ParseCSV parses workout rows from delimited text. Quoted fields may contain
// commas, newlines, and escaped quotes ("" -> "). An unmatched quote degrades
// to literal inclusion of the remaining characters rather than an error.
//
// If the first non-empty row's first cell does not parse as an integer it is
// treated as a header and column names are matched case-insensitively against
// recognized aliases; otherwise the positional layout
// (week, day, focus, exercise, target, sets) applies with no notes column.
// Rows missing an integer week or day, or with an empty exercise, are dropped.
func ParseCSV(text string) []Row {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return rowsFromCells(splitCells(text))
}

// splitCells tokenizes the raw text into rows of cells. Delimiters are all
// ASCII so byte-wise scanning is safe for UTF-8 field content.
func splitCells(text string) [][]string {
	var (
		rows [][]string
		row  []string
		cur  strings.Builder
		inQ  bool
	)
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if inQ {
			if ch == '"' {
				if i+1 < len(text) && text[i+1] == '"' {
					cur.WriteByte('"')
					i++
				} else {
					inQ = false
				}
			} else {
				cur.WriteByte(ch)
			}
			continue
		}
		switch ch {
		case '"':
			inQ = true
		case ',':
			row = append(row, cur.String())
			cur.Reset()
		case '\n':
			row = append(row, cur.String())
			rows = append(rows, row)
			row = nil
			cur.Reset()
		case '\r':
			// ignored
		default:
			cur.WriteByte(ch)
		}
	}
	row = append(row, cur.String())
	return append(rows, row)
}

// columnIndex maps each recognized column to its cell position; -1 means the
// column is absent.
type columnIndex struct {
	week, day, focus, exercise, target, sets, notes int
}

// positionalColumns is the layout assumed when no header row is present.
var positionalColumns = columnIndex{week: 0, day: 1, focus: 2, exercise: 3, target: 4, sets: 5, notes: -1}

// rowsFromCells converts tokenized cells into normalized rows. Shared by the
// CSV and spreadsheet importers.
func rowsFromCells(cells [][]string) []Row {
	var nonEmpty [][]string
	for _, r := range cells {
		for _, c := range r {
			if strings.TrimSpace(c) != "" {
				nonEmpty = append(nonEmpty, r)
				break
			}
		}
	}
	if len(nonEmpty) == 0 {
		return nil
	}

	idx := positionalColumns
	start := 0
	if _, ok := parseIntLoose(cellAt(nonEmpty[0], 0)); !ok {
		// Header row: resolve named columns, case-insensitively.
		start = 1
		header := make([]string, len(nonEmpty[0]))
		for i, h := range nonEmpty[0] {
			header[i] = strings.ToLower(strings.TrimSpace(h))
		}
		find := func(names ...string) int {
			for _, n := range names {
				for i, h := range header {
					if h == n {
						return i
					}
				}
			}
			return -1
		}
		idx = columnIndex{
			week:     find("week"),
			day:      find("day"),
			focus:    find("focus"),
			exercise: find("exercise"),
			target:   find("target reps", "target", "target reps or time"),
			sets:     find("sets planned", "sets"),
			notes:    find("notes", "note"),
		}
	}

	var out []Row
	for _, c := range nonEmpty[start:] {
		week, okW := parseIntLoose(cellAt(c, idx.week))
		day, okD := parseIntLoose(cellAt(c, idx.day))
		if !okW || !okD {
			continue
		}
		exercise := strings.TrimSpace(cellAt(c, idx.exercise))
		if exercise == "" {
			continue
		}
		sets, _ := parseIntLoose(cellAt(c, idx.sets))
		row := Row{
			Week:     week,
			Day:      day,
			Focus:    strings.TrimSpace(cellAt(c, idx.focus)),
			Exercise: exercise,
			Target:   strings.TrimSpace(cellAt(c, idx.target)),
			Sets:     sets,
		}
		if idx.notes >= 0 {
			row.Notes = strings.TrimSpace(cellAt(c, idx.notes))
		}
		out = append(out, RefineRow(row))
	}
	return out
}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// parseIntLoose parses a leading base-10 integer after optional whitespace and
// sign, ignoring trailing garbage ("3x" -> 3). ok is false when no digits are
// present.
func parseIntLoose(s string) (int, bool) {
	s = strings.TrimSpace(s)
	i, neg := 0, false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}
	n, digits := 0, 0
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}
