package report

import "fmt"

// NumberPrefixForYear is the prefix shared by every report number of a year.
func NumberPrefixForYear(year int) string {
	return fmt.Sprintf("ITRC-ETR-%d-", year)
}

// FormatNumber renders ITRC-ETR-<year>-<seq> with a four digit sequence.
func FormatNumber(year, seq int) string {
	return fmt.Sprintf("%s%04d", NumberPrefixForYear(year), seq)
}

// NextNumber allocates the number following existing reports of the year.
func NextNumber(year, existing int) string {
	return FormatNumber(year, existing+1)
}
