package helper

import (
	crand "crypto/rand"
	"encoding/binary"
	"time"

	"golang.org/x/exp/rand"
)

// NewRand 返回使用加密随机数播种的随机数生成器；读取失败时退化为时间种子
func NewRand() *rand.Rand {
	var b [8]byte
	seed := uint64(time.Now().UnixNano())
	if _, err := crand.Read(b[:]); err == nil {
		seed = binary.LittleEndian.Uint64(b[:])
	}
	return rand.New(rand.NewSource(seed))
}
