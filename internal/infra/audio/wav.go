package audio

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
)

// EncodeWAV wraps mono PCM16 samples in a RIFF/WAVE container.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	format := beep.Format{
		SampleRate:  beep.SampleRate(sampleRate),
		NumChannels: 1,
		Precision:   2,
	}

	var out memFile
	if err := wav.Encode(&out, pcm16Streamer(samples), format); err != nil {
		return nil, fmt.Errorf("encoding wav: %w", err)
	}
	return out.data, nil
}

func pcm16Streamer(samples []int16) beep.Streamer {
	return beep.StreamerFunc(func(buf [][2]float64) (int, bool) {
		if len(samples) == 0 {
			return 0, false
		}
		n := min(len(buf), len(samples))
		for i := 0; i < n; i++ {
			v := float64(samples[i]) / 32768
			buf[i] = [2]float64{v, v}
		}
		samples = samples[n:]
		return n, true
	})
}

// memFile is the in-memory io.WriteSeeker wav.Encode needs to patch the
// header sizes once the samples are written.
type memFile struct {
	data []byte
	pos  int
}

func (f *memFile) Write(p []byte) (int, error) {
	if end := f.pos + len(p); end > len(f.data) {
		f.data = append(f.data, make([]byte, end-len(f.data))...)
	}
	n := copy(f.data[f.pos:], p)
	f.pos += n
	return n, nil
}

func (f *memFile) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(f.pos)
	case io.SeekEnd:
		base = int64(len(f.data))
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	pos := base + offset
	if pos < 0 {
		return 0, fmt.Errorf("negative position %d", pos)
	}
	f.pos = int(pos)
	return pos, nil
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }

// Decode opens reply audio for streaming. WAV and MP3 are supported; an
// unknown or generic content type is sniffed from the payload.
func Decode(data []byte, contentType string) (beep.StreamSeekCloser, beep.Format, error) {
	r := nopCloser{bytes.NewReader(data)}

	switch kind := sniff(data, contentType); kind {
	case "wav":
		s, f, err := wav.Decode(r)
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("decoding wav: %w", err)
		}
		return s, f, nil
	case "mp3":
		s, f, err := mp3.Decode(r)
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("decoding mp3: %w", err)
		}
		return s, f, nil
	default:
		return nil, beep.Format{}, fmt.Errorf("unsupported reply audio type %q", contentType)
	}
}

func sniff(data []byte, contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	switch ct {
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return "wav"
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	}

	switch {
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return "wav"
	case len(data) >= 3 && string(data[:3]) == "ID3":
		return "mp3"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "mp3"
	}
	return ""
}
