package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// KeyFunc 根据原语标识与输入生成缓存键
type KeyFunc func(primitiveName string, input any) string

// DefaultKeyFunc 默认缓存键策略
// 使用原语名称 + 输入的确定性 JSON 序列化做 sha256
func DefaultKeyFunc(primitiveName string, input any) string {
	data, err := json.Marshal(input)
	if err != nil {
		// fallback: 使用 fmt.Sprintf 生成确定性字符串避免 key 碰撞
		data = []byte(fmt.Sprintf("%v", input))
	}
	h := sha256.New()
	h.Write([]byte(primitiveName))
	h.Write([]byte{0})
	h.Write(data)
	sum := h.Sum(nil)
	return "prim:cache:" + hex.EncodeToString(sum[:16]) // 使用前 16 字节
}
