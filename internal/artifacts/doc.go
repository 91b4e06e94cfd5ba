// Package artifacts manages the on-disk output tree: one directory per job
// holding the uploaded source, separated stems, generated MIDI and MusicXML,
// analysis output, and a record.json snapshot used to rebuild the job index
// after a database loss.
package artifacts
