// Package notation renders transcribed note sequences into Standard MIDI
// Files and MusicXML scores, one single-instrument part per stem.
package notation
