package notation

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"
)

const (
	divisions       = 480
	beatsPerMeasure = 4
	measureCapacity = divisions * beatsPerMeasure
)

var stepNames = [12]struct {
	step  string
	alter int
}{
	{"C", 0}, {"C", 1}, {"D", 0}, {"D", 1}, {"E", 0}, {"F", 0},
	{"F", 1}, {"G", 0}, {"G", 1}, {"A", 0}, {"A", 1}, {"B", 0},
}

type xmlWork struct {
	Title string `xml:"work-title"`
}

type xmlCreator struct {
	Type string `xml:"type,attr"`
	Name string `xml:",chardata"`
}

type xmlIdentification struct {
	Creator xmlCreator `xml:"creator"`
}

type xmlScorePart struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"part-name"`
}

type xmlPartList struct {
	ScoreParts []xmlScorePart `xml:"score-part"`
}

type xmlKey struct {
	Fifths int `xml:"fifths"`
}

type xmlTime struct {
	Beats    int `xml:"beats"`
	BeatType int `xml:"beat-type"`
}

type xmlClef struct {
	Sign string `xml:"sign"`
	Line int    `xml:"line"`
}

type xmlAttributes struct {
	Divisions int     `xml:"divisions"`
	Key       xmlKey  `xml:"key"`
	Time      xmlTime `xml:"time"`
	Clef      xmlClef `xml:"clef"`
}

type xmlMetronome struct {
	BeatUnit  string `xml:"beat-unit"`
	PerMinute int    `xml:"per-minute"`
}

type xmlDirectionType struct {
	Metronome xmlMetronome `xml:"metronome"`
}

type xmlSound struct {
	Tempo int `xml:"tempo,attr"`
}

type xmlDirection struct {
	DirectionType xmlDirectionType `xml:"direction-type"`
	Sound         xmlSound         `xml:"sound"`
}

type xmlPitch struct {
	Step   string `xml:"step"`
	Alter  int    `xml:"alter,omitempty"`
	Octave int    `xml:"octave"`
}

type xmlTie struct {
	Type string `xml:"type,attr"`
}

type xmlRest struct{}

type xmlNote struct {
	Rest     *xmlRest  `xml:"rest,omitempty"`
	Pitch    *xmlPitch `xml:"pitch,omitempty"`
	Duration int       `xml:"duration"`
	Ties     []xmlTie  `xml:"tie,omitempty"`
	Type     string    `xml:"type,omitempty"`
}

type xmlMeasure struct {
	Number     int            `xml:"number,attr"`
	Attributes *xmlAttributes `xml:"attributes,omitempty"`
	Direction  *xmlDirection  `xml:"direction,omitempty"`
	Notes      []xmlNote      `xml:"note"`
}

type xmlPart struct {
	ID       string       `xml:"id,attr"`
	Measures []xmlMeasure `xml:"measure"`
}

type xmlScorePartwise struct {
	XMLName        xml.Name          `xml:"score-partwise"`
	Version        string            `xml:"version,attr"`
	Work           xmlWork           `xml:"work"`
	Identification xmlIdentification `xml:"identification"`
	PartList       xmlPartList       `xml:"part-list"`
	Parts          []xmlPart         `xml:"part"`
}

// RenderMusicXML serializes a note sequence as a single-part score-partwise
// document in C major, 4/4, 120 BPM. Notes are laid out sequentially with
// rests filling the gaps; events crossing a barline are split and tied.
func RenderMusicXML(instrument string, notes []NoteEvent) ([]byte, error) {
	prepared := prepare(notes)

	builder := newMeasureBuilder()
	current := 0
	for _, n := range prepared {
		startDiv := int(math.Round(n.Onset * 2 * divisions))
		if startDiv < current {
			startDiv = current
		}
		durationDiv := int(math.Round(n.Duration * 2 * divisions))
		if durationDiv < 1 {
			durationDiv = 1
		}

		builder.addRest(startDiv - current)
		builder.addNote(n.Pitch, durationDiv)
		current = startDiv + durationDiv
	}
	builder.closeFinalMeasure()

	score := xmlScorePartwise{
		Version: "3.1",
		Work:    xmlWork{Title: PartTitle(instrument)},
		Identification: xmlIdentification{
			Creator: xmlCreator{Type: "composer", Name: "Generated by SoundSketch"},
		},
		PartList: xmlPartList{
			ScoreParts: []xmlScorePart{{ID: "P1", Name: PartTitle(instrument)}},
		},
		Parts: []xmlPart{{ID: "P1", Measures: builder.measures}},
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString(`<!DOCTYPE score-partwise PUBLIC "-//Recordare//DTD MusicXML 3.1 Partwise//EN" "http://www.musicxml.org/dtds/partwise.dtd">` + "\n")
	encoder := xml.NewEncoder(&buf)
	encoder.Indent("", "  ")
	if err := encoder.Encode(score); err != nil {
		return nil, fmt.Errorf("encode musicxml: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

type measureBuilder struct {
	measures []xmlMeasure
	filled   int
}

func newMeasureBuilder() *measureBuilder {
	b := &measureBuilder{}
	b.measures = append(b.measures, xmlMeasure{
		Number: 1,
		Attributes: &xmlAttributes{
			Divisions: divisions,
			Key:       xmlKey{Fifths: 0},
			Time:      xmlTime{Beats: beatsPerMeasure, BeatType: 4},
			Clef:      xmlClef{Sign: "G", Line: 2},
		},
		Direction: &xmlDirection{
			DirectionType: xmlDirectionType{
				Metronome: xmlMetronome{BeatUnit: "quarter", PerMinute: 120},
			},
			Sound: xmlSound{Tempo: 120},
		},
	})
	return b
}

func (b *measureBuilder) current() *xmlMeasure {
	return &b.measures[len(b.measures)-1]
}

func (b *measureBuilder) advance(duration int) {
	b.filled += duration
	if b.filled >= measureCapacity {
		b.measures = append(b.measures, xmlMeasure{Number: len(b.measures) + 1})
		b.filled = 0
	}
}

func (b *measureBuilder) remaining() int {
	return measureCapacity - b.filled
}

func (b *measureBuilder) addRest(duration int) {
	for duration > 0 {
		chunk := duration
		if room := b.remaining(); chunk > room {
			chunk = room
		}
		b.current().Notes = append(b.current().Notes, xmlNote{
			Rest:     &xmlRest{},
			Duration: chunk,
			Type:     noteType(chunk),
		})
		b.advance(chunk)
		duration -= chunk
	}
}

func (b *measureBuilder) addNote(pitch, duration int) {
	entry := stepNames[pitch%12]
	xp := xmlPitch{Step: entry.step, Alter: entry.alter, Octave: pitch/12 - 1}

	started := false
	for duration > 0 {
		chunk := duration
		if room := b.remaining(); chunk > room {
			chunk = room
		}
		note := xmlNote{
			Pitch:    &xp,
			Duration: chunk,
			Type:     noteType(chunk),
		}
		continues := duration > chunk
		if started {
			note.Ties = append(note.Ties, xmlTie{Type: "stop"})
		}
		if continues {
			note.Ties = append(note.Ties, xmlTie{Type: "start"})
		}
		b.current().Notes = append(b.current().Notes, note)
		b.advance(chunk)
		duration -= chunk
		started = true
	}
}

// closeFinalMeasure pads the last measure with a rest so every measure sums
// to a full bar.
func (b *measureBuilder) closeFinalMeasure() {
	if b.filled == 0 && len(b.measures) > 1 {
		// The last advance opened a fresh empty measure; drop it.
		b.measures = b.measures[:len(b.measures)-1]
		return
	}
	b.addRest(b.remaining())
	if b.filled == 0 && len(b.measures) > 1 {
		b.measures = b.measures[:len(b.measures)-1]
	}
}

// noteType picks the closest notated value for a duration in divisions.
func noteType(duration int) string {
	types := []struct {
		name string
		div  int
	}{
		{"whole", divisions * 4},
		{"half", divisions * 2},
		{"quarter", divisions},
		{"eighth", divisions / 2},
		{"16th", divisions / 4},
		{"32nd", divisions / 8},
	}
	best := types[0]
	bestDistance := math.Abs(float64(duration - best.div))
	for _, t := range types[1:] {
		if d := math.Abs(float64(duration - t.div)); d < bestDistance {
			best = t
			bestDistance = d
		}
	}
	return best.name
}
