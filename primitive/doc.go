/*
Package primitive 提供 primflow 的核心执行契约与组合算子。

# 核心接口与类型

  - Primitive      — 通用执行接口 Execute(ctx, input) (output, error)
  - FuncPrimitive  — 函数适配器
  - Chain          — 顺序组合（前一步输出作为下一步输入，失败短路）
  - Parallel       — 并行组合（声明顺序汇合 + Fork 上下文隔离 + CompositeError）

所有包装器原语（resilience、cache、ratelimit、batch、route、observe）
都实现同一个 Primitive 契约，彼此可以任意嵌套组合。
*/
package primitive
