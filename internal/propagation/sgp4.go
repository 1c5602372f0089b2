package propagation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/star/orbitdash/internal/transform"
)

// go-satellite's Propagate takes the Satellite by value, so SGP4 error codes
// set during propagation never reach the caller. Failures are detected from
// the output instead: NaN/Inf components here, and an implausible radius once
// the Sampler has rotated the position into ECEF.

// SGP4Propagator wraps an initialised go-satellite model for one body.
type SGP4Propagator struct {
	sat     satellite.Satellite
	noradID int
}

// NewSGP4Propagator creates an SGP4 propagator from TLE lines.
//
// The lines are validated before they reach go-satellite, which calls
// log.Fatal on malformed input.
func NewSGP4Propagator(line1, line2 string, noradID int) (*SGP4Propagator, error) {
	if err := validateTLELines(line1, line2); err != nil {
		return nil, fmt.Errorf("%w: NORAD %d: %v", ErrInvalidElements, noradID, err)
	}

	sat := satellite.TLEToSat(strings.TrimSpace(line1), strings.TrimSpace(line2), satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("%w: sgp4 init failed for NORAD %d: code=%d %s",
			ErrInvalidElements, noradID, sat.Error, sat.ErrorStr)
	}
	return &SGP4Propagator{sat: sat, noradID: noradID}, nil
}

func validateTLELines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}
	if line1[2:7] != line2[2:7] {
		return fmt.Errorf("catalog numbers differ: %q vs %q", line1[2:7], line2[2:7])
	}
	for i, line := range []string{line1, line2} {
		if sum, want := tleChecksum(line), line[68]; want < '0' || want > '9' || int(want-'0') != sum {
			return fmt.Errorf("line%d checksum %c, computed %d", i+1, want, sum)
		}
	}
	return validateNumericFields(line1, line2)
}

// validateNumericFields parses every column go-satellite reads, built from
// the line the same way it builds them, so a bad digit is reported here
// instead of reaching its log.Fatal.
func validateNumericFields(line1, line2 string) error {
	unspace := func(s string) string { return strings.Replace(s, " ", "", 2) }

	ints := []struct{ name, value string }{
		{"catalog number", strings.TrimSpace(line1[2:7])},
		{"epoch year", line1[18:20]},
	}
	for _, f := range ints {
		if _, err := strconv.Atoi(f.value); err != nil {
			return fmt.Errorf("%s %q: not an integer", f.name, f.value)
		}
	}

	floats := []struct{ name, value string }{
		{"epoch day", line1[20:32]},
		{"mean motion derivative", unspace(line1[33:43])},
		{"mean motion second derivative", unspace(line1[44:45] + "." + line1[45:50] + "e" + line1[50:52])},
		{"bstar", unspace(line1[53:54] + "." + line1[54:59] + "e" + line1[59:61])},
		{"inclination", unspace(line2[8:16])},
		{"right ascension", unspace(line2[17:25])},
		{"eccentricity", "." + line2[26:33]},
		{"argument of perigee", unspace(line2[34:42])},
		{"mean anomaly", unspace(line2[43:51])},
		{"mean motion", unspace(line2[52:63])},
	}
	for _, f := range floats {
		if _, err := strconv.ParseFloat(f.value, 64); err != nil {
			return fmt.Errorf("%s %q: not a number", f.name, f.value)
		}
	}
	return nil
}

// tleChecksum is the modulo-10 sum of the first 68 columns, where digits
// count their value and '-' counts one.
func tleChecksum(line string) int {
	sum := 0
	for _, c := range line[:68] {
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

// PropagateAt returns the TEME position (km) at t. go-satellite resolves time
// to whole seconds, so sub-second parts of t are truncated.
func (p *SGP4Propagator) PropagateAt(t time.Time) (transform.PositionTEME, error) {
	t = t.UTC()
	pos, _ := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) ||
		math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return transform.PositionTEME{}, fmt.Errorf("%w: NORAD %d: output is NaN/Inf", ErrPropagation, p.noradID)
	}

	return transform.PositionTEME{X: pos.X, Y: pos.Y, Z: pos.Z}, nil
}
