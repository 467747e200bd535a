package loudness

import (
	"strconv"
	"strings"
)

// Target is the loudness the second pass normalizes toward.
type Target struct {
	// I is the integrated loudness target in LUFS.
	I float64
	// TP is the maximum true peak in dBTP.
	TP float64
}

// DefaultTarget is -15 LUFS integrated with a 0 dB true peak ceiling.
var DefaultTarget = Target{I: -15, TP: 0}

// FilterFor builds the loudnorm filter for the playback pass from a measurement.
func FilterFor(m Measurement, t Target) string {
	params := []string{
		"i=" + formatFloat(t.I),
		"tp=" + formatFloat(t.TP),
		"measured_i=" + formatFloat(m.InputI),
		"measured_tp=" + formatFloat(m.InputTP),
		"measured_lra=" + formatFloat(m.InputLRA),
		"measured_thresh=" + formatFloat(m.InputThresh),
		"dual_mono=true",
		"linear=true",
	}
	return "loudnorm=" + strings.Join(params, ":")
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
