package childprocess

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Kind selects how a child descriptor is connected.
type Kind int

const (
	// KindInherit shares the parent's descriptor with the same number.
	KindInherit Kind = iota
	// KindPipe creates a new pipe whose parent end is exposed on the handle.
	KindPipe
	// KindIgnore connects /dev/null (0-2) or leaves the descriptor closed.
	KindIgnore
	// KindIPC places the child's end of the IPC channel at this position.
	KindIPC
	// KindFD shares a specific parent descriptor number.
	KindFD
	// KindFile shares an open file.
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindInherit:
		return "inherit"
	case KindPipe:
		return "pipe"
	case KindIgnore:
		return "ignore"
	case KindIPC:
		return "ipc"
	case KindFD:
		return "fd"
	case KindFile:
		return "file"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Descriptor is one entry of a descriptor table.
type Descriptor struct {
	Kind Kind
	FD   int      // KindFD only
	File *os.File // KindFile only
}

var (
	Inherit = Descriptor{Kind: KindInherit}
	Pipe    = Descriptor{Kind: KindPipe}
	Ignore  = Descriptor{Kind: KindIgnore}
	IPC     = Descriptor{Kind: KindIPC}
)

// FD returns a descriptor sharing the parent's descriptor n.
func FD(n int) Descriptor {
	return Descriptor{Kind: KindFD, FD: n}
}

// File returns a descriptor sharing f.
func File(f *os.File) Descriptor {
	return Descriptor{Kind: KindFile, File: f}
}

// IsIPC reports whether d is the IPC channel marker.
func (d Descriptor) IsIPC() bool {
	return d.Kind == KindIPC
}

func (d Descriptor) String() string {
	switch d.Kind {
	case KindFD:
		return strconv.Itoa(d.FD)
	case KindFile:
		if d.File == nil {
			return "file:<nil>"
		}
		return "file:" + d.File.Name()
	default:
		return d.Kind.String()
	}
}

// Stdio is a descriptor table. Index i describes child descriptor i.
type Stdio []Descriptor

// IPCIndex returns the position of the IPC marker, or -1.
func (s Stdio) IPCIndex() int {
	for i, d := range s {
		if d.IsIPC() {
			return i
		}
	}
	return -1
}

// HasIPC reports whether the table contains the IPC marker.
func (s Stdio) HasIPC() bool {
	return s.IPCIndex() >= 0
}

// Clone returns a copy of s. A nil table stays nil.
func (s Stdio) Clone() Stdio {
	if s == nil {
		return nil
	}
	out := make(Stdio, len(s))
	copy(out, s)
	return out
}

// String renders the table in the form accepted by ParseStdio.
func (s Stdio) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = d.String()
	}
	return strings.Join(parts, ",")
}

// Validate checks the table for entries no spawn can satisfy.
func (s Stdio) Validate() error {
	ipcs := 0
	for i, d := range s {
		switch d.Kind {
		case KindIPC:
			ipcs++
		case KindFD:
			if d.FD < 0 {
				return fmt.Errorf("stdio[%d]: negative descriptor %d", i, d.FD)
			}
		case KindFile:
			if d.File == nil {
				return fmt.Errorf("stdio[%d]: nil file", i)
			}
		case KindInherit, KindPipe, KindIgnore:
		default:
			return fmt.Errorf("stdio[%d]: unknown kind %d", i, int(d.Kind))
		}
	}
	if ipcs > 1 {
		return ErrMultipleIPC
	}
	return nil
}

// ParseDescriptor parses a single table entry: inherit, pipe, ignore, ipc or
// a non-negative descriptor number.
func ParseDescriptor(tok string) (Descriptor, error) {
	tok = strings.TrimSpace(strings.ToLower(tok))
	switch tok {
	case "inherit":
		return Inherit, nil
	case "pipe":
		return Pipe, nil
	case "ignore":
		return Ignore, nil
	case "ipc":
		return IPC, nil
	}
	n, err := strconv.Atoi(tok)
	if err != nil || n < 0 {
		return Descriptor{}, fmt.Errorf("invalid stdio entry %q", tok)
	}
	return FD(n), nil
}

// ParseStdio parses a comma separated table such as "pipe,pipe,inherit,ipc".
// An empty spec yields a nil table.
func ParseStdio(spec string) (Stdio, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	toks := strings.Split(spec, ",")
	out := make(Stdio, 0, len(toks))
	for _, tok := range toks {
		d, err := ParseDescriptor(tok)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
