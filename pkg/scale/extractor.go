package scale

import (
	"regexp"
	"strconv"
)

// netWeightPattern matches lines like "Net 00594.0 g". It is case-sensitive:
// "net 5 g" is not a net weight line. \s and \d only match ASCII.
var netWeightPattern = regexp.MustCompile(`Net\s+(\d+\.?\d*|\.\d+)\s+g`)

// Extract returns the net weight in grams carried by line.
// ok is false when the line is not a net weight line; err is set only when
// the line matched but the number could not be parsed.
func Extract(line string) (weight float64, ok bool, err error) {
	match := netWeightPattern.FindStringSubmatch(line)
	if match == nil {
		return 0, false, nil
	}

	weight, err = strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false, &ParseError{Line: line, Err: err}
	}

	return weight, true, nil
}
