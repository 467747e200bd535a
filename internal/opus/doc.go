// Package opus turns a sound file into Opus frames and streams them to a
// Discord voice connection.
//
// Frames travel between the encoder and the voice connection in a minimal
// binary format: concatenated length-prefixed frames
// ([uint16 LE length][opus bytes]). No headers, no metadata.
//
// Encode runs FFmpeg over a file with an optional audio filter and produces
// length-prefixed frames. FrameReader reads them back, and StreamToVoice
// pushes them into a voice connection's Opus send channel.
package opus
