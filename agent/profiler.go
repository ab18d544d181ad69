package agent

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// currencyRunes are symbols stripped before numeric parsing. Thousands
// separators and percent signs are handled separately.
var currencyRunes = map[rune]bool{
	'$': true, '€': true, '£': true, '¥': true, '₩': true, '₹': true,
}

// stringifyCell renders a cell for categorical handling. nil becomes "".
func stringifyCell(v interface{}) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case int:
		return strconv.Itoa(c)
	default:
		return fmt.Sprintf("%v", c)
	}
}

// ParseNumeric parses a cell as a number after stripping currency symbols,
// thousands separators and percent signs. Returns false for empty or
// unparseable cells.
func ParseNumeric(v interface{}) (float64, bool) {
	switch c := v.(type) {
	case float64:
		return c, true
	case int:
		return float64(c), true
	case nil:
		return 0, false
	}

	s := strings.TrimSpace(stringifyCell(v))
	if s == "" {
		return 0, false
	}

	var b strings.Builder
	for _, r := range s {
		if currencyRunes[r] || r == ',' || r == '%' || r == ' ' {
			continue
		}
		b.WriteRune(r)
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, false
	}

	// Accounting-style negatives: (1,234.56)
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		inner, err := strconv.ParseFloat(cleaned[1:len(cleaned)-1], 64)
		if err != nil {
			return 0, false
		}
		return -inner, true
	}

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

var dateLayouts = []string{
	"2006-01-02", "2006/01/02", "01/02/2006", "02/01/2006",
	"2006-01-02T15:04:05Z07:00", "2006-01-02 15:04:05",
	"Jan 2, 2006", "2 Jan 2006", "January 2, 2006",
}

var timeLayouts = []string{
	"15:04", "15:04:05", "3:04 PM", "3:04:05 PM",
}

func parsesAsDate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func parsesAsTime(s string) bool {
	for _, layout := range timeLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func hasCurrencySymbol(s string) bool {
	for _, r := range s {
		if currencyRunes[r] {
			return true
		}
	}
	return false
}

// InferColumnType classifies the sampled values of one column. Every non-empty
// cell must agree for the richer subtypes (date, time, currency, percentage);
// a column whose non-empty cells all parse numerically is numerical; anything
// else is categorical. An entirely empty column is categorical.
func InferColumnType(values []interface{}) ColumnType {
	nonEmpty := 0
	allDate, allTime := true, true
	allNumeric := true
	allCurrency, allPercent := true, true

	for _, v := range values {
		s := strings.TrimSpace(stringifyCell(v))
		if s == "" {
			continue
		}
		nonEmpty++

		if allDate && !parsesAsDate(s) {
			allDate = false
		}
		if allTime && !parsesAsTime(s) {
			allTime = false
		}
		if _, ok := ParseNumeric(v); !ok {
			allNumeric = false
			allCurrency = false
			allPercent = false
		} else {
			if !hasCurrencySymbol(s) {
				allCurrency = false
			}
			if !strings.HasSuffix(s, "%") {
				allPercent = false
			}
		}
	}

	if nonEmpty == 0 {
		return ColumnTypeCategorical
	}
	switch {
	case allDate:
		return ColumnTypeDate
	case allTime:
		return ColumnTypeTime
	case allCurrency:
		return ColumnTypeCurrency
	case allPercent:
		return ColumnTypePercentage
	case allNumeric:
		return ColumnTypeNumerical
	default:
		return ColumnTypeCategorical
	}
}

// ProfileColumn builds the profile for a single column from all of its values.
// Numeric-family columns report [min,max] over successfully parsed values and
// missing percentage as 1 - parsed/total; other columns report cardinality of
// the stringified values and the fraction of empty cells. Single pass.
func ProfileColumn(name string, values []interface{}) ColumnProfile {
	profile := ColumnProfile{Name: name, Type: InferColumnType(values)}
	total := len(values)
	if total == 0 {
		profile.Type = ColumnTypeCategorical
		return profile
	}

	if profile.Type.IsNumericFamily() {
		parsed := 0
		var min, max float64
		for _, v := range values {
			f, ok := ParseNumeric(v)
			if !ok {
				continue
			}
			if parsed == 0 || f < min {
				min = f
			}
			if parsed == 0 || f > max {
				max = f
			}
			parsed++
		}
		if parsed > 0 {
			profile.ValueRange = []float64{min, max}
		}
		profile.MissingPercentage = 1 - float64(parsed)/float64(total)
		return profile
	}

	unique := make(map[string]struct{})
	empty := 0
	for _, v := range values {
		s := strings.TrimSpace(stringifyCell(v))
		if s == "" {
			empty++
			continue
		}
		unique[s] = struct{}{}
	}
	profile.UniqueValues = len(unique)
	profile.MissingPercentage = float64(empty) / float64(total)
	return profile
}

// ProfileColumns profiles every column of the dataset in header order.
func ProfileColumns(rows []Row, headers []string) []ColumnProfile {
	profiles := make([]ColumnProfile, 0, len(headers))
	for _, h := range headers {
		values := make([]interface{}, 0, len(rows))
		for _, row := range rows {
			values = append(values, row[h])
		}
		profiles = append(profiles, ProfileColumn(h, values))
	}
	return profiles
}

// SplitProfilesByKind partitions profiles into categorical-like and
// numeric-like column name lists for prompt construction. Date and time
// columns group with categorical columns: they label groups, they are not
// aggregated magnitudes.
func SplitProfilesByKind(profiles []ColumnProfile) (categorical, numerical []string) {
	for _, p := range profiles {
		if p.Type.IsNumericFamily() {
			numerical = append(numerical, p.Name)
		} else {
			categorical = append(categorical, p.Name)
		}
	}
	return categorical, numerical
}
