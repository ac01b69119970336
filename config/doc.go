// Package config 提供 PrimFlow 引擎的统一配置：
// 默认值 → YAML 文件 → 环境变量三层加载，校验，日志构建与热重载。
package config
