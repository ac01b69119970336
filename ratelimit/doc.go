// Package ratelimit 提供基于令牌桶的限流包装原语，
// 支持阻塞等待与快速失败两种模式。
package ratelimit
