package parser

import (
	"fmt"
	"regexp"
	"strings"
)

var technicianCodeRegex = regexp.MustCompile(`^[A-Z]+-?\d+$`)

// NormalizeTechnicianCode upper-cases a technician code and checks its format.
// Accepts "ev-12", "EV-12" and "ev12".
func NormalizeTechnicianCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !technicianCodeRegex.MatchString(code) {
		return "", fmt.Errorf("invalid technician code %q. Use letters followed by digits, e.g. EV-12", code)
	}
	return code, nil
}

// ParseTechnicianCodes splits a comma separated list like "ev-1, ev-2".
// Empty entries are ignored and duplicates collapse to one.
func ParseTechnicianCodes(input string) ([]string, error) {
	var codes []string
	seen := map[string]bool{}
	for _, part := range strings.Split(input, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		code, err := NormalizeTechnicianCode(part)
		if err != nil {
			return nil, err
		}
		if seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}
	return codes, nil
}
