package enums

import "fmt"

// ConversionMode declares what the pipeline does with the received asset.
type ConversionMode string

const (
	ConversionModeConvertAndSettle ConversionMode = "convert_and_settle"
	ConversionModeReceiveInKind    ConversionMode = "receive_in_kind"
)

var validConversionModes = []ConversionMode{
	ConversionModeConvertAndSettle,
	ConversionModeReceiveInKind,
}

// String implements fmt.Stringer.
func (m ConversionMode) String() string {
	return string(m)
}

// IsValid reports whether the value is a known ConversionMode.
func (m ConversionMode) IsValid() bool {
	for _, candidate := range validConversionModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseConversionMode converts raw input into a ConversionMode.
func ParseConversionMode(value string) (ConversionMode, error) {
	for _, candidate := range validConversionModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid conversion mode %q", value)
}
