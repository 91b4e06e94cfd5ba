package notation

import "context"

// Renderer produces both artifact encodings for one instrument part.
type Renderer struct{}

// Render returns the MusicXML score and the Standard MIDI File for a note
// sequence.
func (Renderer) Render(ctx context.Context, instrument string, notes []NoteEvent) ([]byte, []byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	musicXML, err := RenderMusicXML(instrument, notes)
	if err != nil {
		return nil, nil, err
	}
	return musicXML, RenderSMF(instrument, notes), nil
}
