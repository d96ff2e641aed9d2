package accel

import (
	"encoding/binary"
	"fmt"
	"math"
	"runtime"
	"sync"
)

// HostLaunch describes one NDRange submission on the host device.
type HostLaunch struct {
	Offset int
	Global int
	Local  int
	args   *HostArgs
}

// Args gives typed access to the bound kernel arguments.
func (l *HostLaunch) Args() *HostArgs { return l.args }

// Groups is the number of work-groups in the launch.
func (l *HostLaunch) Groups() int { return l.Global / l.Local }

// ForEachGroup runs fn once per work-group. Groups execute concurrently on
// up to GOMAXPROCS goroutines; work-items inside a group are the callback's
// responsibility, which lets kernels that use local memory and barriers
// process a group as one sequential unit.
func (l *HostLaunch) ForEachGroup(fn func(group int)) {
	groups := l.Groups()
	workers := runtime.GOMAXPROCS(0)
	if workers > groups {
		workers = groups
	}

	var next int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				mu.Lock()
				g := next
				next++
				mu.Unlock()
				if g >= groups {
					return
				}
				fn(g)
			}
		}()
	}
	wg.Wait()
}

// ForEachItem runs fn for every global id in the launch, offset included.
func (l *HostLaunch) ForEachItem(fn func(gid int)) {
	l.ForEachGroup(func(group int) {
		base := l.Offset + group*l.Local
		for i := 0; i < l.Local; i++ {
			fn(base + i)
		}
	})
}

// HostArgs reads positional kernel arguments. The first access error is
// kept and reported by Err; later accesses return zero values.
type HostArgs struct {
	args []Arg
	err  error
}

func (a *HostArgs) fail(index int, want ArgKind) {
	if a.err != nil {
		return
	}
	a.err = fmt.Errorf("kernel arg %d: want %s: %w", index, want, newStatusError("clSetKernelArg", StatusInvalidArgValue))
}

func (a *HostArgs) get(index int, want ArgKind) (Arg, bool) {
	if index < 0 || index >= len(a.args) || a.args[index].Kind != want {
		a.fail(index, want)
		return Arg{}, false
	}
	return a.args[index], true
}

// Len is the number of bound arguments.
func (a *HostArgs) Len() int { return len(a.args) }

// Buffer returns the backing bytes of a buffer argument.
func (a *HostArgs) Buffer(index int) []byte {
	arg, ok := a.get(index, ArgBuffer)
	if !ok {
		return nil
	}
	return arg.Buffer.(*hostBuffer).data
}

func (a *HostArgs) scalar(index int) (uint32, bool) {
	arg, ok := a.get(index, ArgScalar)
	if !ok {
		return 0, false
	}
	if len(arg.Value) != 4 {
		a.fail(index, ArgScalar)
		return 0, false
	}
	return binary.NativeEndian.Uint32(arg.Value), true
}

func (a *HostArgs) Int32(index int) int32 {
	v, _ := a.scalar(index)
	return int32(v)
}

func (a *HostArgs) Uint32(index int) uint32 {
	v, _ := a.scalar(index)
	return v
}

func (a *HostArgs) Float32(index int) float32 {
	v, _ := a.scalar(index)
	return math.Float32frombits(v)
}

// Local returns the size in bytes of a local memory argument.
func (a *HostArgs) Local(index int) int {
	arg, ok := a.get(index, ArgLocal)
	if !ok {
		return 0
	}
	return arg.LocalSize
}

func (a *HostArgs) Err() error { return a.err }
