// Package audio converts Telegram voice notes into the format speech
// providers expect: OGG/Opus in, 16 kHz mono 16-bit WAV out. It also exposes
// the underlying PCM primitives (resampling, downmixing, WAV framing) for
// callers that need them individually.
package audio

import (
	"encoding/binary"
	"fmt"
)

const bitsPerSample = 16

// EncodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container. The returned byte slice is suitable for direct
// inclusion in a multipart form upload.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size - 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                 // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)                  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))   // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate)) // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))   // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign)) // block align
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bitsPerSample))

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}

// DecodeWAV extracts mono float32 samples normalised to [-1, 1] and the
// sample rate from a RIFF/WAVE file holding 16-bit PCM. Multi-channel input
// is down-mixed by averaging. Only the canonical fmt and data chunks are
// read; other chunks are skipped.
func DecodeWAV(wav []byte) ([]float32, int, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("audio: not a RIFF/WAVE file")
	}

	var (
		sampleRate int
		channels   int
		data       []byte
	)

	off := 12
	for off+8 <= len(wav) {
		id := string(wav[off : off+4])
		size := int(binary.LittleEndian.Uint32(wav[off+4 : off+8]))
		body := off + 8
		if body+size > len(wav) {
			return nil, 0, fmt.Errorf("audio: truncated %q chunk", id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("audio: short fmt chunk")
			}
			format := binary.LittleEndian.Uint16(wav[body : body+2])
			if format != 1 {
				return nil, 0, fmt.Errorf("audio: unsupported WAV format %d (want PCM)", format)
			}
			channels = int(binary.LittleEndian.Uint16(wav[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(wav[body+4 : body+8]))
			bits := binary.LittleEndian.Uint16(wav[body+14 : body+16])
			if bits != bitsPerSample {
				return nil, 0, fmt.Errorf("audio: unsupported bit depth %d", bits)
			}
		case "data":
			data = wav[body : body+size]
		}

		// Chunks are word-aligned.
		off = body + size + size%2
	}

	if sampleRate == 0 || channels == 0 {
		return nil, 0, fmt.Errorf("audio: missing fmt chunk")
	}
	if data == nil {
		return nil, 0, fmt.Errorf("audio: missing data chunk")
	}

	return pcmToFloat32Mono(data, channels), sampleRate, nil
}

// pcmToFloat32Mono down-mixes interleaved 16-bit PCM to mono float32 by
// averaging all channels per frame.
func pcmToFloat32Mono(pcm []byte, channels int) []float32 {
	frames := len(pcm) / (2 * channels)
	mono := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			idx := (i*channels + ch) * 2
			sample := int16(binary.LittleEndian.Uint16(pcm[idx : idx+2]))
			sum += float32(sample) / 32768.0
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
