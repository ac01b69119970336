// Package route 提供编排原语：策略路由（Router）、纯分类（Classifier）
// 与两阶段委派（Delegator）。
package route
