// Package batch 提供时间 / 条数窗口的批处理包装原语：
// 累积多次逻辑调用为一次内层执行，再按位置拆回结果。
package batch
