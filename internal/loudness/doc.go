// Package loudness measures a clip's loudness with FFmpeg's loudnorm filter
// and builds the filter string that normalizes it during playback.
//
// Normalization is two-pass. The first pass runs loudnorm in analysis mode,
// which prints a JSON report somewhere in FFmpeg's diagnostic output. The
// second pass, run by the opus package while encoding for Discord, feeds those
// measurements back in so loudnorm can apply a linear gain toward Target.
package loudness
