package utils

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"gitlab.com/paragonau/api/drover-sms-platform/pkg/logger"
	"go.uber.org/zap"
)

// RecoverFn is a function that handles a recovered panic
type RecoverFn func(r interface{}, stack []byte)

// SafeGo executes the given function in a goroutine with panic recovery
func SafeGo(fn func(), onPanic RecoverFn) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				if onPanic != nil {
					onPanic(r, stack)
				} else {
					// Default handler logs the panic
					if logger.Log != nil {
						logger.Log.Error("[panic] Recovered from panic in goroutine",
							zap.Any("panic", r),
							zap.ByteString("stack", stack),
						)
					} else {
						// Fallback to printing to stderr if logger isn't available
						fmt.Fprintf(os.Stderr, "[PANIC] Recovered from panic in goroutine: %v\n%s\n", r, stack)
					}
				}
			}
		}()
		fn()
	}()
}

// SafeGoCtx executes the given function with a context in a goroutine with panic recovery
func SafeGoCtx(ctx context.Context, fn func(ctx context.Context), onPanic RecoverFn) {
	SafeGo(func() {
		fn(ctx)
	}, onPanic)
}
