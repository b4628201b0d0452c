package mediaprobe

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var errNoDuration = errors.New("mediaprobe: no duration found in container metadata")

// ProbeDuration reads the container metadata of a media file and returns its
// playback duration in seconds. Supported containers: WAV, MP4/M4A, MP3.
// Errors are expected for unknown or truncated files; callers degrade to the
// size heuristic.
func ProbeDuration(filePath string) (float64, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return 0, fmt.Errorf("mediaprobe: open %s: %w", filePath, err)
	}
	defer f.Close()

	head := make([]byte, 12)
	if _, err := io.ReadFull(f, head); err != nil {
		return 0, errNoDuration
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}

	switch {
	case string(head[0:4]) == "RIFF" && string(head[8:12]) == "WAVE":
		return probeWAV(f)
	case string(head[4:8]) == "ftyp":
		return probeMP4(f)
	}

	// MP3 files may start with an ID3 tag or directly with a frame header.
	if ext := strings.ToLower(filepath.Ext(filePath)); ext == ".mp3" || string(head[0:3]) == "ID3" {
		info, err := f.Stat()
		if err != nil {
			return 0, err
		}
		return probeMP3(f, info.Size())
	}

	return 0, errNoDuration
}

// probeWAV walks RIFF chunks for the byte rate (fmt chunk) and payload size
// (data chunk).
func probeWAV(r io.ReadSeeker) (float64, error) {
	if _, err := r.Seek(12, io.SeekStart); err != nil {
		return 0, err
	}

	var byteRate uint32
	var dataSize uint32
	header := make([]byte, 8)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			break
		}
		chunkID := string(header[0:4])
		chunkSize := binary.LittleEndian.Uint32(header[4:8])

		switch chunkID {
		case "fmt ":
			buf := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, buf); err != nil {
				return 0, errNoDuration
			}
			if chunkSize >= 12 {
				byteRate = binary.LittleEndian.Uint32(buf[8:12])
			}
		case "data":
			dataSize = chunkSize
			if _, err := r.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
				return 0, errNoDuration
			}
		default:
			if _, err := r.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
				return 0, errNoDuration
			}
		}
		// Chunks are word-aligned.
		if chunkSize%2 == 1 {
			if _, err := r.Seek(1, io.SeekCurrent); err != nil {
				break
			}
		}
		if byteRate > 0 && dataSize > 0 {
			break
		}
	}

	if byteRate == 0 || dataSize == 0 {
		return 0, errNoDuration
	}
	return float64(dataSize) / float64(byteRate), nil
}

// probeMP4 walks top-level boxes to moov/mvhd and derives duration from the
// movie timescale.
func probeMP4(r io.ReadSeeker) (float64, error) {
	moov, err := findBox(r, "moov", 0, -1)
	if err != nil {
		return 0, errNoDuration
	}
	mvhd, err := findBox(r, "mvhd", moov.payloadStart, moov.payloadSize)
	if err != nil {
		return 0, errNoDuration
	}

	buf := make([]byte, mvhd.payloadSize)
	if _, err := r.Seek(mvhd.payloadStart, io.SeekStart); err != nil {
		return 0, err
	}
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, errNoDuration
	}
	if len(buf) < 4 {
		return 0, errNoDuration
	}

	version := buf[0]
	if version == 1 {
		// 64-bit creation/modification times.
		if len(buf) < 32 {
			return 0, errNoDuration
		}
		timescale := binary.BigEndian.Uint32(buf[20:24])
		duration := binary.BigEndian.Uint64(buf[24:32])
		if timescale == 0 {
			return 0, errNoDuration
		}
		return float64(duration) / float64(timescale), nil
	}

	if len(buf) < 20 {
		return 0, errNoDuration
	}
	timescale := binary.BigEndian.Uint32(buf[12:16])
	duration := binary.BigEndian.Uint32(buf[16:20])
	if timescale == 0 {
		return 0, errNoDuration
	}
	return float64(duration) / float64(timescale), nil
}

type boxRef struct {
	payloadStart int64
	payloadSize  int64
}

// findBox scans a box range for the named box. limit < 0 scans to EOF.
func findBox(r io.ReadSeeker, name string, start, limit int64) (*boxRef, error) {
	pos := start
	end := int64(-1)
	if limit >= 0 {
		end = start + limit
	}

	header := make([]byte, 8)
	for end < 0 || pos < end {
		if _, err := r.Seek(pos, io.SeekStart); err != nil {
			return nil, err
		}
		if _, err := io.ReadFull(r, header); err != nil {
			return nil, errNoDuration
		}
		size := int64(binary.BigEndian.Uint32(header[0:4]))
		boxType := string(header[4:8])
		headerLen := int64(8)

		if size == 1 {
			ext := make([]byte, 8)
			if _, err := io.ReadFull(r, ext); err != nil {
				return nil, errNoDuration
			}
			size = int64(binary.BigEndian.Uint64(ext))
			headerLen = 16
		}
		if size < headerLen {
			return nil, errNoDuration
		}

		if boxType == name {
			return &boxRef{payloadStart: pos + headerLen, payloadSize: size - headerLen}, nil
		}
		pos += size
	}
	return nil, errNoDuration
}

// mpeg1Layer3Bitrates maps the MP3 frame-header bitrate index to kbit/s.
var mpeg1Layer3Bitrates = [...]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320}

// probeMP3 locates the first audio frame header and estimates duration from
// its bitrate over the remaining file size. Good enough for CBR files, which
// is what the transcription pipeline accepts.
func probeMP3(r io.ReadSeeker, fileSize int64) (float64, error) {
	buf := make([]byte, 64*1024)
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	n, _ := io.ReadFull(r, buf)
	if n < 4 {
		return 0, errNoDuration
	}
	buf = buf[:n]

	offset := int64(0)
	// Skip a leading ID3v2 tag: 10-byte header with a syncsafe size.
	if len(buf) >= 10 && string(buf[0:3]) == "ID3" {
		size := int64(buf[6]&0x7f)<<21 | int64(buf[7]&0x7f)<<14 | int64(buf[8]&0x7f)<<7 | int64(buf[9]&0x7f)
		offset = 10 + size
		if offset >= int64(len(buf)) {
			return 0, errNoDuration
		}
		buf = buf[offset:]
	}

	for i := 0; i+4 <= len(buf); i++ {
		if buf[i] != 0xff || buf[i+1]&0xe0 != 0xe0 {
			continue
		}
		// MPEG-1 Layer III only; anything else falls through to the size
		// heuristic.
		if buf[i+1]&0x18 != 0x18 || buf[i+1]&0x06 != 0x02 {
			continue
		}
		idx := buf[i+2] >> 4
		if idx == 0 || int(idx) >= len(mpeg1Layer3Bitrates) {
			continue
		}
		bitrate := mpeg1Layer3Bitrates[idx] * 1000
		audioBytes := fileSize - offset - int64(i)
		return float64(audioBytes*8) / float64(bitrate), nil
	}
	return 0, errNoDuration
}
