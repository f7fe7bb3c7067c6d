package probe

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Transcript is the exported form of a session and its steps.
type Transcript struct {
	Session    *Session  `json:"session"`
	Steps      []*Step   `json:"steps"`
	ExportedAt time.Time `json:"exportedAt"`
}

// Export writes a session transcript as indented JSON, optionally
// zstd-compressed.
func Export(w io.Writer, session *Session, steps []*Step, compress bool) error {
	transcript := Transcript{
		Session:    session,
		Steps:      steps,
		ExportedAt: time.Now().UTC(),
	}

	if compress {
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("creating zstd writer: %w", err)
		}
		if err := writeTranscript(enc, &transcript); err != nil {
			enc.Close()
			return err
		}
		return enc.Close()
	}
	return writeTranscript(w, &transcript)
}

// ReadTranscript decodes an exported transcript, transparently handling
// zstd compression.
func ReadTranscript(r io.Reader, compressed bool) (*Transcript, error) {
	if compressed {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("creating zstd reader: %w", err)
		}
		defer dec.Close()
		r = dec
	}

	var transcript Transcript
	if err := json.NewDecoder(r).Decode(&transcript); err != nil {
		return nil, fmt.Errorf("decoding transcript: %w", err)
	}
	return &transcript, nil
}

func writeTranscript(w io.Writer, transcript *Transcript) error {
	data, err := json.MarshalIndent(transcript, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
