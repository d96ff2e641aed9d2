package harness

import (
	"fmt"

	"github.com/cwbudde/clbench/internal/accel"
)

// Direction says which way a buffer's contents travel.
type Direction int

const (
	Upload Direction = iota
	Download
	UploadDownload
)

func (d Direction) String() string {
	switch d {
	case Upload:
		return "upload"
	case Download:
		return "download"
	case UploadDownload:
		return "upload+download"
	default:
		return "unknown"
	}
}

func (d Direction) uploads() bool   { return d == Upload || d == UploadDownload }
func (d Direction) downloads() bool { return d == Download || d == UploadDownload }

// BufferSpec pairs a named device buffer with its host payload.
type BufferSpec struct {
	Name      string
	Host      []byte
	Direction Direction
}

// Bytes views a typed host slice as the raw payload of a BufferSpec.
func Bytes[T any](s []T) []byte { return accel.Bytes(s) }

// Stager owns the device buffers of one task.
type Stager struct {
	ctx     accel.Context
	queue   accel.Queue
	buffers map[string]accel.Buffer
	order   []string
}

func NewStager(s *Session) *Stager {
	return &Stager{
		ctx:     s.Context,
		queue:   s.Queue,
		buffers: make(map[string]accel.Buffer),
	}
}

// Allocate creates a read/write device buffer sized to spec.Host.
func (st *Stager) Allocate(spec BufferSpec) (accel.Buffer, error) {
	label := "allocate " + spec.Name
	if _, dup := st.buffers[spec.Name]; dup {
		return nil, fmt.Errorf("%s: duplicate buffer name", label)
	}
	if len(spec.Host) == 0 {
		return nil, fmt.Errorf("%s: empty host payload", label)
	}
	buf, err := st.ctx.CreateBuffer(len(spec.Host))
	if err != nil {
		return nil, labelled(label, err)
	}
	st.buffers[spec.Name] = buf
	st.order = append(st.order, spec.Name)
	return buf, nil
}

// Upload enqueues a non-blocking host-to-device copy.
func (st *Stager) Upload(spec BufferSpec) error {
	label := "upload " + spec.Name
	buf, ok := st.buffers[spec.Name]
	if !ok {
		return fmt.Errorf("%s: buffer not allocated", label)
	}
	if err := st.queue.EnqueueWrite(buf, false, spec.Host); err != nil {
		return labelled(label, err)
	}
	return nil
}

// Download performs a blocking device-to-host copy into spec.Host.
func (st *Stager) Download(spec BufferSpec) error {
	label := "download " + spec.Name
	buf, ok := st.buffers[spec.Name]
	if !ok {
		return fmt.Errorf("%s: buffer not allocated", label)
	}
	if err := st.queue.EnqueueRead(buf, true, spec.Host); err != nil {
		return labelled(label, err)
	}
	return nil
}

// StageAll allocates every spec in order and uploads the inputs.
func (st *Stager) StageAll(specs []BufferSpec) error {
	for _, spec := range specs {
		if _, err := st.Allocate(spec); err != nil {
			return err
		}
	}
	for _, spec := range specs {
		if !spec.Direction.uploads() {
			continue
		}
		if err := st.Upload(spec); err != nil {
			return err
		}
	}
	return nil
}

// DownloadAll reads back every output spec in order.
func (st *Stager) DownloadAll(specs []BufferSpec) error {
	for _, spec := range specs {
		if !spec.Direction.downloads() {
			continue
		}
		if err := st.Download(spec); err != nil {
			return err
		}
	}
	return nil
}

// Buffer looks up an allocated buffer by name.
func (st *Stager) Buffer(name string) (accel.Buffer, bool) {
	buf, ok := st.buffers[name]
	return buf, ok
}

// Release frees every buffer. Safe to call more than once.
func (st *Stager) Release() {
	for i := len(st.order) - 1; i >= 0; i-- {
		st.buffers[st.order[i]].Release()
	}
	st.buffers = make(map[string]accel.Buffer)
	st.order = nil
}
