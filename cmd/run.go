package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/zjrosen/forknative/internal/childprocess"
	"github.com/zjrosen/forknative/internal/forknative"
	"github.com/zjrosen/forknative/internal/log"
	"github.com/zjrosen/forknative/internal/ui/styles"
)

const previewWidth = 60

type runFlags struct {
	launch          launchFlags
	send            []string
	disconnectAfter time.Duration
	noStdin         bool
	quiet           bool
}

var runOpts runFlags

var runCmd = &cobra.Command{
	Use:   "run [flags] PATH [ARGS...]",
	Short: "Launch a child process with an IPC channel",
	Long: `Launch PATH with an IPC channel and relay messages.

Each line read from stdin must be a JSON document; it is sent to the child.
Messages from the child are written to stdout, one JSON document per line.
Lifecycle events (spawn, disconnect, exit, errors) are written to stderr.
End of input disconnects the channel. Interrupt forwards the kill signal.
The command exits with the child's exit code, or 128+N for signal N.

Examples:
  # Talk to a worker interactively
  forknative run ./worker

  # Send one message, then disconnect after a second
  forknative run --no-stdin --send '{"cmd":"ping"}' --disconnect-after 1s ./worker

  # Launch a profile from the config file with piped stdio
  forknative run --profile echo --silent

  # Custom descriptor table: the channel on fd 4
  forknative run --stdio pipe,pipe,inherit,ignore,ipc ./worker`,
	Args: cobra.ArbitraryArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runOpts.launch.register(runCmd.Flags())
	runCmd.Flags().StringArrayVar(&runOpts.send, "send", nil, "send a JSON message once the child starts (repeatable)")
	runCmd.Flags().DurationVar(&runOpts.disconnectAfter, "disconnect-after", 0, "disconnect the channel after this long")
	runCmd.Flags().BoolVar(&runOpts.noStdin, "no-stdin", false, "do not read messages from stdin")
	runCmd.Flags().BoolVarP(&runOpts.quiet, "quiet", "q", false, "only report errors on stderr")
	runCmd.Flags().SetInterspersed(false)
}

func runRun(cmd *cobra.Command, args []string) error {
	path, argv, opts, err := runOpts.launch.build(cmd, args, cfg)
	if err != nil {
		return err
	}
	for _, doc := range runOpts.send {
		if !gjson.Valid(doc) {
			return fmt.Errorf("--send: invalid JSON %q", doc)
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cp, err := env.launcher.Launch(ctx, path, forknative.WithArgs(argv, env.options(opts)))
	if err != nil {
		return err
	}

	s := &session{
		cp:     cp,
		out:    cmd.OutOrStdout(),
		status: &syncWriter{w: cmd.ErrOrStderr()},
		quiet:  runOpts.quiet,
	}
	err = s.run(ctx, cmd.InOrStdin(), runOpts)

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		// The status line already reported it.
		cmd.SilenceErrors = true
	}
	return err
}

// session relays one child's channel to the terminal.
type session struct {
	cp     *forknative.ChildProcess
	out    io.Writer
	status *syncWriter
	quiet  bool
}

func (s *session) run(ctx context.Context, stdin io.Reader, opts runFlags) error {
	if pid := s.cp.Pid(); pid > 0 {
		s.line("spawned", styles.LabelStyle, "pid", strconv.Itoa(pid), "id", s.cp.ID())
	}

	var wg conc.WaitGroup
	s.forwardOutput(&wg)
	if w := s.cp.Stdin(); w != nil {
		_ = w.Close()
	}

	for _, doc := range opts.send {
		if !s.send(doc) {
			break
		}
	}
	if opts.disconnectAfter > 0 {
		t := time.AfterFunc(opts.disconnectAfter, s.disconnect)
		defer t.Stop()
	}
	if !opts.noStdin {
		// Not joined: a terminal read cannot be interrupted.
		go s.readInput(stdin)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var (
		messages     = s.cp.Messages()
		errs         = s.cp.Errors()
		disconnected = s.cp.Disconnected()
		exited       = s.cp.Exited()
		cancelled    = ctx.Done()

		status   childprocess.ExitStatus
		gotExit  bool
		spawnErr error
	)
	for messages != nil || errs != nil || exited != nil || disconnected != nil {
		select {
		case m, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			_, _ = fmt.Fprintln(s.out, m.String())
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if errors.Is(err, childprocess.ErrSpawn) {
				spawnErr = err
			}
			s.errorLine(err)
		case <-disconnected:
			disconnected = nil
			s.line("disconnected", styles.WarningStyle)
		case st, ok := <-exited:
			exited = nil
			if ok {
				status, gotExit = st, true
				s.exitLine(st)
			}
		case sig := <-sigCh:
			log.Info(log.CatCLI, "Forwarding interrupt", "signal", sig.String(), "id", s.cp.ID())
			s.kill()
		case <-cancelled:
			cancelled = nil
			s.kill()
		}
	}
	wg.Wait()

	if !gotExit {
		if spawnErr != nil {
			return spawnErr
		}
		return fmt.Errorf("child %s did not report an exit status", s.cp.ID())
	}
	if status.Success() {
		return nil
	}
	return &ExitError{Status: status}
}

// forwardOutput copies piped child output to stderr so stdout only carries
// channel messages.
func (s *session) forwardOutput(wg *conc.WaitGroup) {
	for _, r := range []io.ReadCloser{s.cp.Stdout(), s.cp.Stderr()} {
		if r == nil {
			continue
		}
		wg.Go(func() {
			_, _ = io.Copy(s.status, r)
			_ = r.Close()
		})
	}
}

// readInput sends each non-empty stdin line and disconnects at end of input.
func (s *session) readInput(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !s.send(line) {
			return
		}
	}
	if err := sc.Err(); err != nil {
		log.ErrorErr(log.CatCLI, "Reading stdin failed", err)
	}
	s.disconnect()
}

// send reports false once the channel is closed.
func (s *session) send(doc string) bool {
	if !gjson.Valid(doc) {
		s.line("invalid", styles.ErrorStyle, "input", styles.TruncateString(doc, previewWidth))
		return true
	}
	if err := s.cp.Send(json.RawMessage(doc)); err != nil {
		if errors.Is(err, childprocess.ErrChannelClosed) {
			return false
		}
		s.errorLine(err)
		return true
	}
	if !s.quiet {
		s.line("sent", styles.OutStyle, "message", styles.TruncateString(doc, previewWidth))
	}
	return true
}

func (s *session) disconnect() {
	if err := s.cp.Disconnect(); err != nil && !errors.Is(err, childprocess.ErrNotConnected) {
		s.errorLine(err)
	}
}

func (s *session) kill() {
	if err := s.cp.Kill(); err != nil && !errors.Is(err, childprocess.ErrNotRunning) {
		s.errorLine(err)
	}
}

func (s *session) exitLine(st childprocess.ExitStatus) {
	switch {
	case st.Signaled():
		s.line("exited", styles.WarningStyle, "signal", st.SignalName())
	case st.Code == 0:
		s.line("exited", styles.SuccessStyle, "code", "0")
	default:
		s.line("exited", styles.ErrorStyle, "code", strconv.Itoa(st.Code))
	}
}

func (s *session) errorLine(err error) {
	_, _ = fmt.Fprintln(s.status, styles.StatusLine("error", styles.ErrorStyle, "error", err.Error()))
}

func (s *session) line(label string, style lipgloss.Style, fields ...string) {
	if s.quiet {
		return
	}
	_, _ = fmt.Fprintln(s.status, styles.StatusLine(label, style, fields...))
}

// syncWriter serializes writes from the relay goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}
