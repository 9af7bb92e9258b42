// Package units converts radial (doppler) speeds between display units.
// All stored and wire values are metres per second.
package units

// Recognised unit names.
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits lists every unit name accepted by ConvertSpeed.
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid reports whether unit is a recognised unit name.
func IsValid(unit string) bool {
	for _, v := range ValidUnits {
		if unit == v {
			return true
		}
	}
	return false
}

// ValidUnitsString returns the accepted unit names for error messages.
func ValidUnitsString() string {
	return "mps, mph, kmph, kph"
}

// ConvertSpeed converts a speed in metres per second to the target unit.
// Unknown units pass the value through unchanged.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * 2.2369362920544
	case KMPH, KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}
