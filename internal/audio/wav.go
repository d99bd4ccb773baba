package audio

import "encoding/binary"

// WAV 容器常量
const (
	// HeaderSize 标准 WAV 头长度（字节）
	HeaderSize = 44

	formatPCM = 1
)

// WrapPCM 给裸 PCM 数据加上最小 WAV 头，
// 使其无需落盘临时文件即可直接交给流式解码器播放。
// byte rate 由采样率、声道数和位深度推出。
func WrapPCM(pcm []byte, sampleRate, channels, bitDepth int) []byte {
	byteRate := sampleRate * channels * bitDepth / 8
	blockAlign := channels * bitDepth / 8
	dataSize := len(pcm)

	out := make([]byte, HeaderSize, HeaderSize+dataSize)

	// RIFF chunk
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+dataSize))
	copy(out[8:12], "WAVE")

	// fmt sub-chunk
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], formatPCM)
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], uint16(bitDepth))

	// data sub-chunk
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataSize))

	return append(out, pcm...)
}
