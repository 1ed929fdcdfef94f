package image

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// MaxFileNameLen is the longest accepted file name.
const MaxFileNameLen = 255

// Sentinel errors for ParseSpec, wrapped in *SpecError.
var (
	ErrRange   = errors.New("invalid memory range string")
	ErrAddress = errors.New("invalid memory address")
	ErrLength  = errors.New("invalid memory length")
)

// SpecError reports an unparseable image argument.
type SpecError struct {
	Arg string
	Err error
}

func (e *SpecError) Error() string {
	return fmt.Sprintf("image argument %q: %v", e.Arg, e.Err)
}

func (e *SpecError) Unwrap() error {
	return e.Err
}

// Spec is a parsed image argument.
type Spec struct {
	// File is the image file name
	File string

	// Addr is the memory address of the image
	Addr uint32

	// Len is the image length in bytes, zero if not given
	Len int
}

// ParseSpec parses file[:addr[:len]].
func ParseSpec(arg string) (Spec, error) {
	parts := strings.SplitN(arg, ":", 3)

	s := Spec{File: parts[0]}
	if s.File == "" || len(s.File) > MaxFileNameLen {
		return Spec{}, &SpecError{Arg: arg, Err: ErrRange}
	}

	if len(parts) > 1 && parts[1] != "" {
		v, err := strconv.ParseUint(parts[1], 0, 32)
		if err != nil {
			return Spec{}, &SpecError{Arg: arg, Err: fmt.Errorf("%w: %v", ErrAddress, err)}
		}
		s.Addr = uint32(v)
	}

	if len(parts) > 2 && parts[2] != "" {
		v, err := strconv.ParseUint(parts[2], 0, 31)
		if err != nil {
			return Spec{}, &SpecError{Arg: arg, Err: fmt.Errorf("%w: %v", ErrLength, err)}
		}
		s.Len = int(v)
	}

	return s, nil
}

// WithDefaultLength returns s with Len set to n if no length was given.
func (s Spec) WithDefaultLength(n int) Spec {
	if s.Len == 0 {
		s.Len = n
	}
	return s
}

// String formats s the way progress messages show it.
func (s Spec) String() string {
	var b strings.Builder
	b.WriteString(s.File)
	if s.Addr != 0 {
		fmt.Fprintf(&b, " at address 0x%06X", s.Addr)
	}
	if s.Len != 0 {
		fmt.Fprintf(&b, " (%d bytes)", s.Len)
	}
	return b.String()
}

// Load reads the image named by s. With a zero length the whole file is
// read; otherwise exactly s.Len bytes from its start, failing if the file
// is shorter.
func Load(s Spec) ([]byte, error) {
	f, err := os.Open(s.File)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	return LoadReader(f, s.Len)
}

// LoadReader reads n bytes from r, or all of r when n is zero.
func LoadReader(r io.Reader, n int) ([]byte, error) {
	if n == 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("image is empty")
		}
		return data, nil
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("failed to read %d image bytes: %w", n, err)
	}
	return data, nil
}

// Save writes data to the file named by s, replacing it.
func Save(s Spec, data []byte) error {
	if err := os.WriteFile(s.File, data, 0o644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	return nil
}
