package sources

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var eraBase = map[string]int{
	"明治": 1868 - 1,
	"大正": 1912 - 1,
	"昭和": 1926 - 1,
	"平成": 1989 - 1,
	"令和": 2019 - 1,
}

var (
	eraDateRe     = regexp.MustCompile(`(明治|大正|昭和|平成|令和)\s*(\d+|元)\s*年\s*(\d+)\s*月\s*(\d+)\s*日`)
	westernDateRe = regexp.MustCompile(`(\d{4})年\s*(\d{1,2})月\s*(\d{1,2})日`)
)

// ParseEraDate converts an era-form date (令和7年6月10日) to a date. The era
// year 元 means year one.
func ParseEraDate(s string) (time.Time, error) {
	m := eraDateRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("no era date in %q", s)
	}
	year := 1
	if m[2] != "元" {
		year, _ = strconv.Atoi(m[2])
	}
	month, _ := strconv.Atoi(m[3])
	day, _ := strconv.Atoi(m[4])
	adYear := eraBase[m[1]] + year
	return time.Date(adYear, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}

// ParseWesternDate converts a western-form Japanese date (2025年5月7日 (水))
// to a date.
func ParseWesternDate(s string) (time.Time, error) {
	m := westernDateRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("no date in %q", s)
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}
