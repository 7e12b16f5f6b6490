package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Artifact 证书图片制品(渲染好的 PNG 字节 + 内容类型)
type Artifact struct {
	Data        []byte
	ContentType string
}

// Store 制品存储接口
// 以键寻址的二进制存储,Put 返回可持久引用的键
type Store interface {
	Put(ctx context.Context, key string, artifact *Artifact) (string, error)
	Get(ctx context.Context, ref string) (*Artifact, error)
	Delete(ctx context.Context, ref string) error
}

// NewKey 生成防碰撞的制品键
// 提交可能并发发生且此时记录 ID 尚未分配,因此键用时间戳加随机后缀
func NewKey(prefix string) string {
	return fmt.Sprintf("%s/%d-%s.png", prefix, time.Now().UnixNano(), uuid.New().String())
}
