package primitive

import "context"

// Primitive 是所有可组合执行单元的公共接口。
// 任何包装器（重试、超时、缓存、路由等）都实现同一个契约，
// 组合是结构化的：包装器持有内层 Primitive 并委托执行。
type Primitive interface {
	// Execute 执行单元，输入经处理后产出输出，或返回已分类的错误
	Execute(ctx context.Context, input any) (any, error)
	// Name 返回单元名称（用于缓存键、指标标签与追踪 span）
	Name() string
}

// Func 原语函数类型
type Func func(ctx context.Context, input any) (any, error)

// FuncPrimitive 函数原语实现
type FuncPrimitive struct {
	name string
	fn   Func
}

// NewFunc 用函数创建原语
func NewFunc(name string, fn Func) *FuncPrimitive {
	return &FuncPrimitive{
		name: name,
		fn:   fn,
	}
}

func (p *FuncPrimitive) Execute(ctx context.Context, input any) (any, error) {
	return p.fn(ctx, input)
}

func (p *FuncPrimitive) Name() string {
	return p.name
}
