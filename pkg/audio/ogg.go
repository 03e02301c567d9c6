package audio

import (
	"fmt"

	"layeh.com/gopus"
)

// Opus always runs at 48 kHz internally; 5760 samples per channel is the
// maximum frame size (120 ms) the decoder can emit.
const (
	opusSampleRate   = 48000
	opusMaxFrameSize = 5760
)

// TargetSampleRate is the rate speech providers expect.
const TargetSampleRate = 16000

// VoiceToWAV converts a Telegram voice note (an OGG container holding Opus
// audio) into a 16 kHz mono 16-bit WAV ready for transcription.
func VoiceToWAV(ogg []byte) ([]byte, error) {
	pcm, channels, err := decodeOggOpus(ogg)
	if err != nil {
		return nil, err
	}
	if channels == 2 {
		pcm = StereoToMono(pcm)
	}
	pcm = ResampleMono16(pcm, opusSampleRate, TargetSampleRate)
	return EncodeWAV(pcm, TargetSampleRate, 1), nil
}

// decodeOggOpus decodes every Opus packet in the container into interleaved
// 48 kHz 16-bit PCM and reports the channel count from the OpusHead header.
func decodeOggOpus(ogg []byte) ([]byte, int, error) {
	packets, err := splitOggPackets(ogg)
	if err != nil {
		return nil, 0, err
	}
	if len(packets) < 2 {
		return nil, 0, fmt.Errorf("audio: ogg stream has no opus headers")
	}

	head := packets[0]
	if len(head) < 10 || string(head[0:8]) != "OpusHead" {
		return nil, 0, fmt.Errorf("audio: missing OpusHead packet")
	}
	channels := int(head[9])
	if channels < 1 || channels > 2 {
		return nil, 0, fmt.Errorf("audio: unsupported channel count %d", channels)
	}

	dec, err := gopus.NewDecoder(opusSampleRate, channels)
	if err != nil {
		return nil, 0, fmt.Errorf("audio: create opus decoder: %w", err)
	}

	var pcm []byte
	// packets[1] is OpusTags; audio starts at packets[2].
	for _, pkt := range packets[2:] {
		if len(pkt) == 0 {
			continue
		}
		samples, err := dec.Decode(pkt, opusMaxFrameSize, false)
		if err != nil {
			return nil, 0, fmt.Errorf("audio: opus decode: %w", err)
		}
		pcm = append(pcm, int16sToBytes(samples)...)
	}
	if len(pcm) == 0 {
		return nil, 0, fmt.Errorf("audio: ogg stream has no audio packets")
	}
	return pcm, channels, nil
}

// splitOggPackets walks the OGG pages in data and reassembles the logical
// packets. Lacing values of 255 mean the packet continues into the next
// segment (possibly on the next page).
func splitOggPackets(data []byte) ([][]byte, error) {
	var (
		packets [][]byte
		current []byte
	)

	off := 0
	for off < len(data) {
		if off+27 > len(data) {
			return nil, fmt.Errorf("audio: truncated ogg page header")
		}
		if string(data[off:off+4]) != "OggS" {
			return nil, fmt.Errorf("audio: bad ogg capture pattern at offset %d", off)
		}
		if data[off+4] != 0 {
			return nil, fmt.Errorf("audio: unsupported ogg version %d", data[off+4])
		}

		segments := int(data[off+26])
		headerLen := 27 + segments
		if off+headerLen > len(data) {
			return nil, fmt.Errorf("audio: truncated ogg segment table")
		}
		table := data[off+27 : off+headerLen]

		body := off + headerLen
		for _, lacing := range table {
			n := int(lacing)
			if body+n > len(data) {
				return nil, fmt.Errorf("audio: truncated ogg page body")
			}
			current = append(current, data[body:body+n]...)
			body += n
			if lacing < 255 {
				packets = append(packets, current)
				current = nil
			}
		}
		off = body
	}

	if len(current) > 0 {
		return nil, fmt.Errorf("audio: ogg stream ends mid-packet")
	}
	return packets, nil
}
