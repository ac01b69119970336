/*
Package resilience 提供恢复类包装原语。

  - Retry          — 错误分类过滤 + 退避重试（固定 / 线性 / 指数+抖动）
  - Fallback       — 降级链，按触发分类过滤，耗尽后返回 CompositeError
  - Timeout        — 截止时间 + 协作取消，到期产出 DeadlineExceeded
  - CircuitBreaker — Closed / Open / HalfOpen 三态熔断

所有包装器实现 primitive.Primitive 契约，可任意嵌套组合，
例如 Retry(Timeout(CircuitBreaker(call)))。
*/
package resilience
