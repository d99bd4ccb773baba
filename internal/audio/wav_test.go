package audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPCM(t *testing.T) {
	pcm := make([]byte, 3200)
	for i := range pcm {
		pcm[i] = byte(i)
	}

	out := WrapPCM(pcm, 16000, 1, 16)
	require.Len(t, out, HeaderSize+len(pcm))

	assert.Equal(t, "RIFF", string(out[0:4]))
	assert.Equal(t, uint32(36+len(pcm)), binary.LittleEndian.Uint32(out[4:8]))
	assert.Equal(t, "WAVE", string(out[8:12]))
	assert.Equal(t, "fmt ", string(out[12:16]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(out[20:22]), "audio format should be PCM")
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(out[22:24]), "channels")
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(out[24:28]), "sample rate")
	assert.Equal(t, uint32(32000), binary.LittleEndian.Uint32(out[28:32]), "byte rate = sr*ch*bits/8")
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(out[32:34]), "block align")
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(out[34:36]), "bit depth")
	assert.Equal(t, "data", string(out[36:40]))
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(out[40:44]))
	assert.Equal(t, pcm, out[HeaderSize:])
}

func TestWrapPCMStereo(t *testing.T) {
	out := WrapPCM(nil, 48000, 2, 16)
	require.Len(t, out, HeaderSize)

	assert.Equal(t, uint32(192000), binary.LittleEndian.Uint32(out[28:32]), "byte rate")
	assert.Equal(t, uint16(4), binary.LittleEndian.Uint16(out[32:34]), "block align")
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(out[40:44]), "data size")
}
