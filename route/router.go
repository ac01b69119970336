package route

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/primflow/primitive"
	"github.com/BaSui01/primflow/types"
)

// Policy 路由策略接口
// 根据输入与上下文决定目标路由，并给出可观测的决策理由
type Policy interface {
	// Decide 返回路由键与决策理由
	Decide(ctx context.Context, input any) (route string, rationale string, err error)
}

// PolicyFunc 路由策略函数类型
type PolicyFunc func(ctx context.Context, input any) (string, string, error)

func (f PolicyFunc) Decide(ctx context.Context, input any) (string, string, error) {
	return f(ctx, input)
}

// Router 路由器
// 按策略从命名目标中选择一个执行。选中的路由与理由写入 ExecContext
// 元数据供下游观测；无匹配路由以 NO_ROUTE_MATCHED 失败。
type Router struct {
	name         string
	policy       Policy
	destinations map[string]primitive.Primitive
	defaultRoute string
	logger       *zap.Logger
	// mu 保护 destinations，注册与执行可能并发
	mu sync.RWMutex
}

// NewRouter 创建路由器
func NewRouter(name string, policy Policy, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		name:         name,
		policy:       policy,
		destinations: make(map[string]primitive.Primitive),
		logger:       logger.With(zap.String("component", "router"), zap.String("router", name)),
	}
}

// Register 注册路由目标
func (r *Router) Register(route string, dest primitive.Primitive) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.destinations[route] = dest
	return r
}

// SetDefault 设置默认路由，策略返回未注册路由时兜底
func (r *Router) SetDefault(route string) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultRoute = route
	return r
}

// Routes 返回所有已注册路由
func (r *Router) Routes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	routes := make([]string, 0, len(r.destinations))
	for route := range r.destinations {
		routes = append(routes, route)
	}
	return routes
}

func (r *Router) Name() string {
	return r.name
}

// Execute 执行路由
// 1. 策略决策
// 2. 查找目标（回退默认路由）
// 3. 记录决策到元数据后执行目标
func (r *Router) Execute(ctx context.Context, input any) (any, error) {
	ctx, ec := types.EnsureExecContext(ctx)

	route, rationale, err := r.policy.Decide(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("routing policy failed: %w", err)
	}

	r.mu.RLock()
	dest, ok := r.destinations[route]
	if !ok && r.defaultRoute != "" {
		route = r.defaultRoute
		dest, ok = r.destinations[r.defaultRoute]
	}
	r.mu.RUnlock()

	if !ok {
		return nil, types.NewError(types.KindNoRouteMatched,
			fmt.Sprintf("no destination for route %q", route)).WithPrimitive(r.name)
	}

	ec.SetMetadata("route", route)
	if rationale != "" {
		ec.SetMetadata("route.rationale", rationale)
	}
	r.logger.Debug("route selected",
		zap.String("route", route),
		zap.String("rationale", rationale),
	)

	out, err := dest.Execute(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("destination %s failed: %w", dest.Name(), err)
	}
	return out, nil
}
