package childprocess

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/google/uuid"

	"github.com/zjrosen/forknative/internal/ipc"
	"github.com/zjrosen/forknative/internal/log"
	"github.com/zjrosen/forknative/internal/pubsub"
)

// ChildProcess is the handle of a spawned process. All methods are safe for
// concurrent use.
type ChildProcess struct {
	id       string
	path     string
	args     []string
	execPath string

	cmd     *exec.Cmd
	channel *ipc.Channel
	stdin   io.WriteCloser
	stdout  io.ReadCloser
	stderr  io.ReadCloser
	extra   map[int]*os.File

	logger          log.Scope
	killSignal      syscall.Signal
	deliverInternal bool
	observer        func(Event)
	broker          *pubsub.Broker[Event]

	mu           sync.RWMutex
	state        State
	exited       bool
	exitStatus   ExitStatus
	spawnErr     error
	finished     bool
	disconnectCh chan struct{} // closed by Disconnect to unblock the reader

	messages     chan ipc.Message
	exitCh       chan ExitStatus
	exitDone     chan struct{}
	disconnected chan struct{}
	errors       chan error
	done         chan struct{}
}

func newChildProcess(path string, args []string, opts SpawnOptions) *ChildProcess {
	id := uuid.NewString()
	return &ChildProcess{
		id:              id,
		logger:          log.With("id", id),
		path:            path,
		args:            args,
		execPath:        opts.ExecPath,
		killSignal:      opts.killSignal(),
		deliverInternal: opts.DeliverInternal,
		observer:        opts.Observer,
		broker:          pubsub.NewBroker[Event](),
		state:           StateConnecting,
		disconnectCh:    make(chan struct{}),
		messages:        make(chan ipc.Message, opts.messageBuffer()),
		exitCh:          make(chan ExitStatus, 1),
		exitDone:        make(chan struct{}),
		disconnected:    make(chan struct{}),
		errors:          make(chan error, 10),
		done:            make(chan struct{}),
	}
}

// ID returns the handle's unique identifier.
func (cp *ChildProcess) ID() string { return cp.id }

// Path returns the executable as given to Spawn.
func (cp *ChildProcess) Path() string { return cp.path }

// Args returns a copy of the argument list, without the program name.
func (cp *ChildProcess) Args() []string { return append([]string(nil), cp.args...) }

// ExecPath returns the ExecPath option the process was spawned with.
func (cp *ChildProcess) ExecPath() string { return cp.execPath }

// Pid returns the OS process ID, or -1 if the process never started.
func (cp *ChildProcess) Pid() int {
	if cp.cmd == nil || cp.cmd.Process == nil {
		return -1
	}
	return cp.cmd.Process.Pid
}

// State returns the current lifecycle state.
func (cp *ChildProcess) State() State {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	return cp.state
}

// Connected reports whether the IPC channel is open.
func (cp *ChildProcess) Connected() bool {
	return cp.State() == StateConnected
}

// Stdin returns the write end of the child's stdin, or nil unless stdio[0]
// is a pipe.
func (cp *ChildProcess) Stdin() io.WriteCloser { return cp.stdin }

// Stdout returns the read end of the child's stdout, or nil unless stdio[1]
// is a pipe.
func (cp *ChildProcess) Stdout() io.ReadCloser { return cp.stdout }

// Stderr returns the read end of the child's stderr, or nil unless stdio[2]
// is a pipe.
func (cp *ChildProcess) Stderr() io.ReadCloser { return cp.stderr }

// ExtraPipe returns the parent end of a pipe at descriptor i >= 3, or nil.
func (cp *ChildProcess) ExtraPipe(i int) *os.File { return cp.extra[i] }

// Messages delivers messages from the child in the order they were sent.
// It is closed once the channel is disconnected.
func (cp *ChildProcess) Messages() <-chan ipc.Message { return cp.messages }

// Exited delivers the exit status once and is then closed. It is closed
// without a value if the process never started.
func (cp *ChildProcess) Exited() <-chan ExitStatus { return cp.exitCh }

// Disconnected is closed when the IPC channel has been torn down.
func (cp *ChildProcess) Disconnected() <-chan struct{} { return cp.disconnected }

// Errors delivers asynchronous failures: start failures, channel read
// errors and wait errors. It is closed when Done is.
func (cp *ChildProcess) Errors() <-chan error { return cp.errors }

// Done is closed when the handle has reached its final state.
func (cp *ChildProcess) Done() <-chan struct{} { return cp.done }

// Subscribe returns lifecycle events until ctx is cancelled or the handle
// is done. Slow subscribers miss events.
func (cp *ChildProcess) Subscribe(ctx context.Context) <-chan pubsub.Event[Event] {
	return cp.broker.Subscribe(ctx)
}

// ExitStatus returns the exit status and whether the process has exited.
func (cp *ChildProcess) ExitStatus() (ExitStatus, bool) {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	return cp.exitStatus, cp.exited
}

// Wait blocks until the process exits or ctx is done. It returns the
// SpawnError if the process never started.
func (cp *ChildProcess) Wait(ctx context.Context) (ExitStatus, error) {
	select {
	case <-cp.exitDone:
	case <-ctx.Done():
		return ExitStatus{}, ctx.Err()
	}
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	if cp.spawnErr != nil {
		return ExitStatus{}, cp.spawnErr
	}
	return cp.exitStatus, nil
}

// Send writes msg to the child as a JSON document.
func (cp *ChildProcess) Send(msg any) error {
	if cp.State() != StateConnected {
		err := fmt.Errorf("send: %w: %w", ErrChannelClosed, ipc.ErrClosed)
		cp.emit(Event{Kind: pubsub.ErrorEvent, Err: err})
		return err
	}

	m, err := ipc.NewMessage(msg)
	if err != nil {
		return err
	}
	if err := cp.channel.SendRaw(m.Body); err != nil {
		if errors.Is(err, ipc.ErrClosed) {
			err = fmt.Errorf("%w: %w", ErrChannelClosed, err)
		}
		err = fmt.Errorf("send: %w", err)
		cp.emit(Event{Kind: pubsub.ErrorEvent, Err: err})
		return err
	}
	cp.emit(Event{Kind: pubsub.SendEvent, Message: m})
	return nil
}

// Disconnect closes the IPC channel. Disconnected fires once the channel is
// torn down, independently of process exit.
func (cp *ChildProcess) Disconnect() error {
	cp.mu.Lock()
	if cp.state != StateConnected {
		cp.mu.Unlock()
		return ErrNotConnected
	}
	cp.transition(StateDisconnecting)
	close(cp.disconnectCh)
	cp.mu.Unlock()

	cp.logger.Debug(log.CatIPC, "Disconnecting", "pid", cp.Pid())
	return cp.channel.Close()
}

// Kill sends sig, or the configured kill signal (SIGTERM by default), to the
// process. The resulting exit is reported on Exited.
func (cp *ChildProcess) Kill(sig ...syscall.Signal) error {
	s := cp.killSignal
	if len(sig) > 0 {
		s = sig[0]
	}

	cp.mu.RLock()
	running := cp.cmd != nil && cp.cmd.Process != nil && !cp.exited && cp.spawnErr == nil
	cp.mu.RUnlock()
	if !running {
		return ErrNotRunning
	}

	cp.logger.Debug(log.CatProcess, "Signalling process", "pid", cp.Pid(), "signal", s)
	if err := cp.cmd.Process.Signal(s); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return ErrNotRunning
		}
		return fmt.Errorf("kill: %w", err)
	}
	return nil
}

// transition must be called with mu held.
func (cp *ChildProcess) transition(next State) bool {
	if !cp.state.CanTransition(next) {
		cp.logger.Warn(log.CatProcess, "ignoring invalid state transition", "from", cp.state, "to", next)
		return false
	}
	cp.logger.Debug(log.CatProcess, "state transition", "from", cp.state, "to", next)
	cp.state = next
	return true
}

func (cp *ChildProcess) emit(ev Event) {
	ev.ChildID = cp.id
	ev.Pid = cp.Pid()
	if cp.observer != nil {
		cp.observer(ev)
	}
	cp.broker.Publish(ev.Kind, ev)
}

// sendError delivers err on Errors without blocking. Errors raised after the
// handle is done, or while the buffer is full, are logged and dropped.
func (cp *ChildProcess) sendError(err error) {
	cp.emit(Event{Kind: pubsub.ErrorEvent, Err: err})

	cp.mu.RLock()
	defer cp.mu.RUnlock()
	if cp.finished {
		cp.logger.Debug(log.CatProcess, "handle done, dropping error", "error", err)
		return
	}
	select {
	case cp.errors <- err:
	default:
		cp.logger.Debug(log.CatProcess, "error channel full, dropping error", "error", err)
	}
}

// failStart records a start failure and moves the handle to its final state.
func (cp *ChildProcess) failStart(err *SpawnError) {
	cp.logger.ErrorErr(log.CatProcess, "Process failed to start", err, "path", cp.path)

	cp.mu.Lock()
	cp.spawnErr = err
	cp.mu.Unlock()

	cp.sendError(err)

	cp.mu.Lock()
	hadChannel := cp.channel != nil
	cp.transition(StateDisconnected)
	close(cp.messages)
	close(cp.disconnected)
	close(cp.exitCh)
	close(cp.exitDone)
	cp.mu.Unlock()

	if hadChannel {
		cp.emit(Event{Kind: pubsub.DisconnectEvent})
	}
	cp.finish()
}

// started moves a successfully started process to its running state and
// launches the reader and reaper goroutines.
func (cp *ChildProcess) started() {
	cp.mu.Lock()
	if cp.channel != nil {
		cp.transition(StateConnected)
	} else {
		cp.transition(StateDisconnected)
		close(cp.messages)
		close(cp.disconnected)
	}
	cp.mu.Unlock()

	cp.logger.Info(log.CatProcess, "Process started", "pid", cp.Pid(), "path", cp.path)
	cp.emit(Event{Kind: pubsub.SpawnEvent})

	if cp.channel != nil {
		go cp.readLoop()
	}
	go cp.waitLoop()
}

// readLoop is the only sender on messages and the only caller of
// channelClosed.
func (cp *ChildProcess) readLoop() {
	for {
		msg, err := cp.channel.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, ipc.ErrClosed) {
				cp.sendError(fmt.Errorf("ipc read: %w", err))
			}
			cp.channelClosed()
			return
		}

		if msg.IsInternal() {
			cp.emit(Event{Kind: pubsub.InternalEvent, Message: msg})
			if !cp.deliverInternal {
				continue
			}
		} else {
			cp.emit(Event{Kind: pubsub.MessageEvent, Message: msg})
		}

		select {
		case cp.messages <- msg:
		case <-cp.disconnectCh:
			// Messages still queued behind a local disconnect are dropped.
			_ = cp.channel.Close()
			cp.channelClosed()
			return
		}
	}
}

func (cp *ChildProcess) channelClosed() {
	_ = cp.channel.Close()

	cp.mu.Lock()
	cp.transition(StateDisconnected)
	close(cp.messages)
	close(cp.disconnected)
	exited := cp.exited
	if exited {
		cp.transition(StateExited)
	}
	cp.mu.Unlock()

	cp.logger.Debug(log.CatIPC, "Channel disconnected", "pid", cp.Pid())
	cp.emit(Event{Kind: pubsub.DisconnectEvent})

	if exited {
		cp.finish()
	}
}

func (cp *ChildProcess) waitLoop() {
	err := cp.cmd.Wait()

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		cp.sendError(fmt.Errorf("wait: %w", err))
	}
	status := exitStatusOf(cp.cmd.ProcessState)

	if cp.stdin != nil {
		_ = cp.stdin.Close()
	}

	cp.mu.Lock()
	cp.exited = true
	cp.exitStatus = status
	cp.exitCh <- status
	close(cp.exitCh)
	close(cp.exitDone)
	final := cp.state == StateDisconnected
	if final {
		cp.transition(StateExited)
	}
	cp.mu.Unlock()

	cp.logger.Info(log.CatProcess, "Process exited", "pid", cp.Pid(),
		"code", status.Code, "signal", status.SignalName())
	cp.emit(Event{Kind: pubsub.ExitEvent, Exit: status})

	if final {
		cp.finish()
	}
}

// finish closes the error channel and the observer broker. It runs exactly
// once, from whichever of exit or disconnect happens last.
func (cp *ChildProcess) finish() {
	cp.mu.Lock()
	if cp.finished {
		cp.mu.Unlock()
		return
	}
	cp.finished = true
	close(cp.errors)
	close(cp.done)
	cp.mu.Unlock()

	for _, f := range cp.extra {
		_ = f.Close()
	}
	cp.broker.Close()
	if n := cp.broker.Dropped(); n > 0 {
		cp.logger.Warn(log.CatProcess, "Slow subscribers missed events", "dropped", n)
	}
}
