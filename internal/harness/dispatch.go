package harness

import (
	"fmt"

	"github.com/cwbudde/clbench/internal/accel"
)

// ArgList collects positional kernel arguments. Methods chain; the first
// error is kept and reported by Bind.
type ArgList struct {
	stager *Stager
	args   []accel.Arg
	err    error
}

// Binder appends a task's kernel arguments in declaration order.
type Binder func(args *ArgList)

func (a *ArgList) Buffer(name string) *ArgList {
	buf, ok := a.stager.Buffer(name)
	if !ok {
		if a.err == nil {
			a.err = fmt.Errorf("kernel arg %d: unknown buffer %q", len(a.args), name)
		}
		a.args = append(a.args, accel.Arg{})
		return a
	}
	a.args = append(a.args, accel.BufferArg(buf))
	return a
}

func (a *ArgList) Int32(v int32) *ArgList {
	a.args = append(a.args, accel.Int32Arg(v))
	return a
}

func (a *ArgList) Uint32(v uint32) *ArgList {
	a.args = append(a.args, accel.Uint32Arg(v))
	return a
}

func (a *ArgList) Float32(v float32) *ArgList {
	a.args = append(a.args, accel.Float32Arg(v))
	return a
}

// Local reserves size bytes of work-group local memory.
func (a *ArgList) Local(size int) *ArgList {
	a.args = append(a.args, accel.LocalArg(size))
	return a
}

// Len is the number of arguments appended so far.
func (a *ArgList) Len() int { return len(a.args) }

// Bind runs the binder and sets every argument on the kernel.
func Bind(k accel.Kernel, st *Stager, bind Binder) error {
	list := &ArgList{stager: st}
	bind(list)
	if list.err != nil {
		return list.err
	}
	for i, arg := range list.args {
		if err := k.SetArg(i, arg); err != nil {
			return labelled(fmt.Sprintf("kernel arg %d", i), err)
		}
	}
	return nil
}

// Submit enqueues one NDRange at offset zero.
func Submit(q accel.Queue, k accel.Kernel, shape WorkShape) error {
	if err := shape.Validate(); err != nil {
		return labelled("enqueue kernel", err)
	}
	if err := q.EnqueueNDRange(k, 0, shape.Global, shape.Local); err != nil {
		return labelled("enqueue kernel", err)
	}
	return nil
}
