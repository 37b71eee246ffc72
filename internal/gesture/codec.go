// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gesture

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/relabs-tech/gesture_lock/internal/imu"
)

// Blob layout: "GSQ1", uint32 sample count, then X/Y/Z float32 per sample,
// all little-endian.
const (
	blobMagic  = "GSQ1"
	headerSize = 8
	sampleSize = 12
)

// Encode serialises s into a fixed-layout blob.
func Encode(s Sequence) []byte {
	buf := make([]byte, headerSize+len(s)*sampleSize)
	copy(buf, blobMagic)
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(s)))
	off := headerSize
	for _, v := range s {
		for i := 0; i < 3; i++ {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(float32(v.Axis(i))))
			off += 4
		}
	}
	return buf
}

func decodeHeader(b []byte) (int, error) {
	if len(b) < headerSize || string(b[:4]) != blobMagic {
		return 0, fmt.Errorf("gesture: bad blob header")
	}
	return int(binary.LittleEndian.Uint32(b[4:])), nil
}

// Decode parses a blob produced by Encode.
func Decode(b []byte) (Sequence, error) {
	n, err := decodeHeader(b)
	if err != nil {
		return nil, err
	}
	if len(b) < headerSize+n*sampleSize {
		return nil, fmt.Errorf("gesture: blob truncated: %d samples need %d bytes, have %d",
			n, headerSize+n*sampleSize, len(b))
	}
	s := make(Sequence, n)
	off := headerSize
	for k := range s {
		var v [3]float64
		for i := 0; i < 3; i++ {
			v[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[off:])))
			off += 4
		}
		s[k] = imu.Calibrated{X: v[0], Y: v[1], Z: v[2]}
	}
	return s, nil
}
