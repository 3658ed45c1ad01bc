package exception

import (
	"runtime/debug"

	"github.com/mezonai/powchain/logx"
	"github.com/mezonai/powchain/monitoring"
)

// SafeGo runs fn in a goroutine, logging and counting a panic instead of
// crashing the process.
func SafeGo(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				monitoring.IncreasePanicCount()
				logx.Error("PANIC", "Panic in ", name, ": ", r, "\n", string(debug.Stack()))
			}
		}()
		fn()
	}()
}
