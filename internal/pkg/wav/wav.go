// Package wav provides a minimal PCM16 WAV encoder, used for the silence
// fallback substituted when the synthesis collaborator fails.
package wav

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	bitsPerSample = 16
	numChannels   = 1
	headerSize    = 44
)

// Silence encodes a mono PCM16 WAV file of the given duration containing
// only zero samples.
func Silence(duration time.Duration, sampleRate int) []byte {
	numSamples := int(float64(sampleRate) * duration.Seconds())
	return encodeHeader(numSamples, sampleRate)
}

// Duration returns the play length of a PCM16 WAV payload.
func Duration(data []byte) (time.Duration, error) {
	if len(data) < headerSize || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, fmt.Errorf("not a WAV payload")
	}
	sampleRate := binary.LittleEndian.Uint32(data[24:28])
	byteRate := binary.LittleEndian.Uint32(data[28:32])
	if sampleRate == 0 || byteRate == 0 {
		return 0, fmt.Errorf("invalid WAV header")
	}
	dataSize := len(data) - headerSize
	seconds := float64(dataSize) / float64(byteRate)
	return time.Duration(seconds * float64(time.Second)), nil
}

func encodeHeader(numSamples, sampleRate int) []byte {
	dataSize := numSamples * numChannels * bitsPerSample / 8
	buf := make([]byte, headerSize+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], numChannels)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*numChannels*bitsPerSample/8))
	binary.LittleEndian.PutUint16(buf[32:34], numChannels*bitsPerSample/8)
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	return buf
}
