// internal/usermode/trampoline.go

package usermode

import (
	"encoding/binary"
	"fmt"

	"ktfsched/internal/klog"
	"ktfsched/internal/mm"
)

// FaultResult is returned when user code faults. It matches -EFAULT.
const FaultResult int64 = -14

// frameMagic is written just below the stack top when a user frame is entered.
const frameMagic uint64 = 0x4b54465553455221

// Trampoline switches into unprivileged execution on a task-owned stack.
//
// A hosted processor has no ring switch, so the user frame runs on its own
// goroutine: a separate execution context that shares nothing with the
// caller but the page. The caller blocks until the frame returns.
type Trampoline struct {
	log klog.Logger
}

func New(log klog.Logger) *Trampoline {
	if log == nil {
		log = klog.NewNoOpLogger()
	}
	return &Trampoline{log: log}
}

// Enter runs fn(arg) in user mode on stack and returns its result. A panic in
// fn is reported as FaultResult instead of taking down the processor.
func (tr *Trampoline) Enter(fn func(any) int64, arg any, stack *mm.Page) int64 {
	if stack == nil {
		tr.log.Error("usermode: no stack for user frame")
		return FaultResult
	}
	if fn == nil {
		tr.log.Error("usermode: nil entry point", klog.F("pfn", stack.PFN()))
		return FaultResult
	}

	sp := stack.Top() - 8
	binary.LittleEndian.PutUint64(stack.Data[sp:], frameMagic)

	done := make(chan int64, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				tr.log.Error("usermode: fault in user frame",
					klog.F("pfn", stack.PFN()), klog.F("fault", fmt.Sprint(r)))
				done <- FaultResult
			}
		}()
		done <- fn(arg)
	}()
	res := <-done

	if binary.LittleEndian.Uint64(stack.Data[sp:]) != frameMagic {
		tr.log.Warn("usermode: user frame clobbered stack top", klog.F("pfn", stack.PFN()))
	}
	binary.LittleEndian.PutUint64(stack.Data[sp:], 0)
	return res
}

// InFrame reports whether a user frame is currently live on stack.
func InFrame(stack *mm.Page) bool {
	if stack == nil {
		return false
	}
	return binary.LittleEndian.Uint64(stack.Data[stack.Top()-8:]) == frameMagic
}
