package model

import (
	"fmt"
	"slices"
	"strings"
)

// FlagStatus is the state of a flag, written as its trailing indicator.
type FlagStatus byte

const (
	FlagNotApplicable FlagStatus = iota
	FlagRequested
	FlagApproved
	FlagDenied
)

// Indicator returns the single character used in flag representations.
func (s FlagStatus) Indicator() byte {
	switch s {
	case FlagRequested:
		return '?'
	case FlagApproved:
		return '+'
	case FlagDenied:
		return '-'
	default:
		return '/'
	}
}

func (s FlagStatus) String() string {
	switch s {
	case FlagRequested:
		return "requested"
	case FlagApproved:
		return "approved"
	case FlagDenied:
		return "denied"
	default:
		return "n/a"
	}
}

func flagStatusFor(indicator byte) FlagStatus {
	switch indicator {
	case '?':
		return FlagRequested
	case '+':
		return FlagApproved
	case '-':
		return FlagDenied
	default:
		return FlagNotApplicable
	}
}

// flagValueSeparator splits a "value:" prefix introduced by queries from the flag name.
const flagValueSeparator = ':'

// Flag is a named toggle set on an issue, or a request set on an attachment.
type Flag struct {
	Name   string
	Value  string
	Status FlagStatus

	// Requestee is only kept for attachment requests.
	Requestee string
}

// ParseFlag parses a single flag representation such as "review?",
// "fixed1.9.2:status1.9.2" or "review?(someone@example.com)". The requestee is kept
// only when withRequestee is set.
func ParseFlag(representation string, withRequestee bool) (Flag, error) {
	repr := representation
	var requestee string
	if open := strings.IndexByte(repr, '('); open >= 0 {
		rest := repr[open+1:]
		if end := strings.IndexByte(rest, ')'); end >= 0 {
			rest = rest[:end]
		}
		requestee = rest
		repr = repr[:open]
	}

	var value string
	if sep := strings.IndexByte(repr, flagValueSeparator); sep >= 0 {
		value = repr[:sep]
		repr = repr[sep+1:]
	}

	if len(repr) <= 1 {
		return Flag{}, fmt.Errorf("could not parse flag %q", representation)
	}

	last := len(repr) - 1
	f := Flag{Status: flagStatusFor(repr[last])}
	if withRequestee {
		f.Requestee = requestee
	}
	if f.Status == FlagNotApplicable {
		// Truncated value from a known field overflow in the flag log.
		if repr == "in-testsu" {
			f.Name = "in-testsuite"
			f.Status = FlagRequested
			return f, nil
		}
		f.Name = repr
		f.Value = value
		return f, nil
	}
	f.Name = repr[:last]
	return f, nil
}

// String returns the flag's canonical representation.
func (f Flag) String() string {
	var b strings.Builder
	if f.Status == FlagNotApplicable {
		if f.Value != "" {
			b.WriteString(f.Value)
			b.WriteByte(flagValueSeparator)
		}
		b.WriteString(f.Name)
	} else {
		b.WriteString(f.Name)
		b.WriteByte(f.Status.Indicator())
	}
	if f.Requestee != "" {
		b.WriteByte('(')
		b.WriteString(f.Requestee)
		b.WriteByte(')')
	}
	return b.String()
}

// ParseFlags parses a comma separated flag list. Malformed entries are
// skipped; one error per skipped entry is returned alongside the flags.
func ParseFlags(representation string, withRequestee bool) ([]Flag, []error) {
	var (
		flags []Flag
		errs  []error
	)
	for _, token := range SplitCSV(representation) {
		f, err := ParseFlag(token, withRequestee)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !withRequestee {
			f.Requestee = ""
		}
		flags = append(flags, f)
	}
	return flags, errs
}

// FormatFlags serializes flags sorted by name so equal sets always produce
// equal facet values.
func FormatFlags(flags []Flag, withRequestee bool) string {
	sorted := slices.Clone(flags)
	slices.SortStableFunc(sorted, func(a, b Flag) int {
		return strings.Compare(a.Name, b.Name)
	})
	items := make([]string, len(sorted))
	for i, f := range sorted {
		if !withRequestee {
			f.Requestee = ""
		}
		items[i] = f.String()
	}
	return JoinCSV(items)
}
