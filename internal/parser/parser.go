// Package parser turns dispatcher string arguments into typed kart commands.
// It does no lookups and has no side effects beyond debug logging.
package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrArgCount is returned when a command has too few arguments.
var ErrArgCount = errors.New("wrong argument count")

// parseUintFromFloat parses a string that may be an integer ("32") or float ("32.00") into uint64.
// Scripted clients often serialize every number as a float.
func parseUintFromFloat(s string) (uint64, error) {
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != float64(uint64(f)) {
		return 0, fmt.Errorf("parseUintFromFloat: %q is not a valid uint64", s)
	}
	return uint64(f), nil
}

// parseVehicleID parses a vehicle id in the uint16 range.
func parseVehicleID(s string) (uint16, error) {
	v, err := parseUintFromFloat(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("error parsing vehicle id: %w", err)
	}
	if v > math.MaxUint16 {
		return 0, fmt.Errorf("error parsing vehicle id: %d out of range", v)
	}
	return uint16(v), nil
}

// parseFlag accepts the usual boolean spellings plus "1"/"0".
func parseFlag(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "f", "no", "off":
		return false, nil
	case "1", "true", "t", "yes", "on":
		return true, nil
	}
	return false, fmt.Errorf("invalid flag %q", s)
}

// parseFinite parses a float and rejects NaN and infinities.
func parseFinite(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not finite", s)
	}
	return f, nil
}

// parseSeconds parses a non-negative duration given in (fractional) seconds.
func parseSeconds(s string) (time.Duration, error) {
	f, err := parseFinite(s)
	if err != nil {
		return 0, fmt.Errorf("error parsing seconds: %w", err)
	}
	if f < 0 {
		return 0, fmt.Errorf("error parsing seconds: %v is negative", f)
	}
	return time.Duration(f * float64(time.Second)), nil
}

func needArgs(command string, args []string, n int) error {
	if len(args) < n {
		return fmt.Errorf("%w: %s needs %d, got %d", ErrArgCount, command, n, len(args))
	}
	return nil
}

// Parser provides pure []string -> command struct conversion.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new parser with only a logger dependency
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}
