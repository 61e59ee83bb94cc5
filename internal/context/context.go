package context

import (
	"context"

	osinfo "github.com/xuibot/botctl/pkg/os_info"
)

type contextKey int

const (
	osInfo contextKey = iota
	nonInteractive
)

func OSInfoFromContext(ctx context.Context) osinfo.Info {
	info, _ := ctx.Value(osInfo).(osinfo.Info)

	return info
}

func ContextWithOSInfo(ctx context.Context, info osinfo.Info) context.Context {
	return context.WithValue(ctx, osInfo, info)
}

func SetOSContext(ctx context.Context) (context.Context, error) {
	info, err := osinfo.GetOSInfo(ctx)
	if err != nil {
		return ctx, err
	}

	return ContextWithOSInfo(ctx, info), nil
}

func NonInteractiveFromContext(ctx context.Context) bool {
	v, _ := ctx.Value(nonInteractive).(bool)

	return v
}

func ContextWithNonInteractive(ctx context.Context, v bool) context.Context {
	return context.WithValue(ctx, nonInteractive, v)
}
