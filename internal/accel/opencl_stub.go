//go:build !gpu

package accel

func newOpenCLRuntime() (Runtime, error) {
	return nil, ErrNotBuilt
}
