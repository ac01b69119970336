/*
Package cache 提供带 single-flight 合并的缓存包装原语与外部键值存储契约。

  - Store       — 窄存储接口 Get / Set(ttl)，未命中返回 ErrCacheMiss
  - RedisStore  — go-redis 实现（跨进程共享）
  - MemoryStore — 进程内 TTL 实现（测试 / 单进程）
  - Cache       — 缓存原语：命中返回存储值，未命中合并并发请求为一次内层执行
  - KeyFunc     — 缓存键策略，默认 sha256(原语名 + 输入 JSON)
*/
package cache
