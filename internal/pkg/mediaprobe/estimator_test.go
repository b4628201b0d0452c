package mediaprobe

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeWAV builds a minimal PCM WAV file with the given byte rate and data
// payload size.
func writeWAV(t *testing.T, byteRate, dataSize uint32) string {
	t.Helper()

	fmtChunk := make([]byte, 16)
	binary.LittleEndian.PutUint16(fmtChunk[0:2], 1)  // PCM
	binary.LittleEndian.PutUint16(fmtChunk[2:4], 1)  // mono
	binary.LittleEndian.PutUint32(fmtChunk[4:8], 16000)
	binary.LittleEndian.PutUint32(fmtChunk[8:12], byteRate)
	binary.LittleEndian.PutUint16(fmtChunk[12:14], 2)
	binary.LittleEndian.PutUint16(fmtChunk[14:16], 16)

	var buf []byte
	buf = append(buf, "RIFF"...)
	buf = binary.LittleEndian.AppendUint32(buf, 4+8+16+8+dataSize)
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = append(buf, fmtChunk...)
	buf = append(buf, "data"...)
	buf = binary.LittleEndian.AppendUint32(buf, dataSize)
	buf = append(buf, make([]byte, dataSize)...)

	path := filepath.Join(t.TempDir(), "test.wav")
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

// writeMP4 builds a skeletal MP4 with just ftyp and moov/mvhd boxes.
func writeMP4(t *testing.T, timescale, duration uint32) string {
	t.Helper()

	mvhd := make([]byte, 100)
	// version 0, flags 0, creation/modification zeroed.
	binary.BigEndian.PutUint32(mvhd[12:16], timescale)
	binary.BigEndian.PutUint32(mvhd[16:20], duration)

	box := func(name string, payload []byte) []byte {
		out := binary.BigEndian.AppendUint32(nil, uint32(8+len(payload)))
		out = append(out, name...)
		return append(out, payload...)
	}

	var buf []byte
	buf = append(buf, box("ftyp", []byte("isom\x00\x00\x02\x00isomiso2"))...)
	buf = append(buf, box("moov", box("mvhd", mvhd))...)

	path := filepath.Join(t.TempDir(), "test.m4a")
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

func TestProbeDuration_WAV(t *testing.T) {
	// 32000 B/s byte rate with 96000 bytes of audio = 3 seconds.
	path := writeWAV(t, 32000, 96000)

	got, err := ProbeDuration(path)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, got, 0.01)
}

func TestProbeDuration_MP4(t *testing.T) {
	// timescale 600, duration 39000 units = 65 seconds.
	path := writeMP4(t, 600, 39000)

	got, err := ProbeDuration(path)
	require.NoError(t, err)
	assert.InDelta(t, 65.0, got, 0.01)
}

func TestProbeDuration_UnknownContainer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noise.bin")
	require.NoError(t, os.WriteFile(path, []byte("definitely not media data"), 0o644))

	_, err := ProbeDuration(path)
	require.Error(t, err)
}

func TestEstimateDurationSeconds_ExactPath(t *testing.T) {
	path := writeWAV(t, 32000, 96000)
	assert.Equal(t, int64(3), EstimateDurationSeconds(path, 123456))
}

func TestEstimateDurationSeconds_RoundsProbeResult(t *testing.T) {
	// 80000 bytes at 32000 B/s = 2.5s, rounds to 3.
	path := writeWAV(t, 32000, 80000)
	assert.Equal(t, int64(3), EstimateDurationSeconds(path, 0))
}

func TestEstimateDurationSeconds_FallbackOnCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.mp3")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x01, 0x02}, 0o644))

	// 160000 bytes / 16000 B/s = 10 seconds via the heuristic.
	assert.Equal(t, int64(10), EstimateDurationSeconds(path, 160000))
}

func TestEstimateDurationSeconds_MissingFileUsesHeuristic(t *testing.T) {
	assert.Equal(t, int64(2), EstimateDurationSeconds("/nonexistent/file.wav", 32000))
}

func TestEstimateFromSize_NeverZero(t *testing.T) {
	assert.Equal(t, int64(1), EstimateFromSize(0))
	assert.Equal(t, int64(1), EstimateFromSize(-1))
	assert.Equal(t, int64(1), EstimateFromSize(1))
	assert.Equal(t, int64(1), EstimateFromSize(15999))
	assert.Equal(t, int64(10), EstimateFromSize(160000))
}
