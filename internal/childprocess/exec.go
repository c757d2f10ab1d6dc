package childprocess

import (
	"bytes"
	"context"
	"io"
	"syscall"

	"github.com/sourcegraph/conc"
)

// Output is the result of a process run to completion by Exec.
type Output struct {
	Stdout []byte
	Stderr []byte
	Exit   ExitStatus
}

// Exec runs path with args using the package default Spawner and waits for
// it to finish.
func Exec(ctx context.Context, path string, args []string, opts SpawnOptions) (Output, error) {
	return DefaultSpawner.Exec(ctx, path, args, opts)
}

// Exec runs path with args to completion, capturing stdout and stderr. When
// opts.Stdio is nil stdin is ignored and stdout and stderr are piped. If ctx
// is cancelled the process is killed with SIGKILL and ctx.Err() is returned
// along with whatever output was captured.
func (s *Spawner) Exec(ctx context.Context, path string, args []string, opts SpawnOptions) (Output, error) {
	if opts.Stdio == nil {
		opts.Stdio = Stdio{Ignore, Pipe, Pipe}
	}

	cp, err := s.Spawn(path, args, opts)
	if err != nil {
		return Output{}, err
	}

	var stdout, stderr bytes.Buffer
	var wg conc.WaitGroup
	if r := cp.Stdout(); r != nil {
		wg.Go(func() {
			_, _ = io.Copy(&stdout, r)
			_ = r.Close()
		})
	}
	if r := cp.Stderr(); r != nil {
		wg.Go(func() {
			_, _ = io.Copy(&stderr, r)
			_ = r.Close()
		})
	}
	wg.Go(func() {
		for range cp.Messages() {
		}
	})

	stop := context.AfterFunc(ctx, func() {
		_ = cp.Kill(syscall.SIGKILL)
	})
	defer stop()

	status, waitErr := cp.Wait(context.Background())
	wg.Wait()

	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), Exit: status}
	if waitErr != nil {
		return out, waitErr
	}
	if ctx.Err() != nil {
		return out, ctx.Err()
	}
	return out, nil
}
