/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package codec

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Kind classifies codec and orchestration failures.
type Kind int

const (
	// KindUnsupportedFormat: extension or content not recognized and no fallback applies.
	KindUnsupportedFormat Kind = iota + 1
	// KindParseFailure: bytes do not conform to the selected format.
	KindParseFailure
	// KindIOFailure: reading or writing the underlying storage failed.
	KindIOFailure
	// KindCorruptContainer: zip archive unreadable or a required part is missing.
	// It also matches ErrParseFailure.
	KindCorruptContainer
)

func (k Kind) String() string {
	switch k {
	case KindUnsupportedFormat:
		return "unsupported format"
	case KindParseFailure:
		return "parse failure"
	case KindIOFailure:
		return "io failure"
	case KindCorruptContainer:
		return "corrupt container"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinels for errors.Is checks against *Error values.
var (
	ErrUnsupportedFormat = &Error{Kind: KindUnsupportedFormat}
	ErrParseFailure      = &Error{Kind: KindParseFailure}
	ErrIOFailure         = &Error{Kind: KindIOFailure}
	ErrCorruptContainer  = &Error{Kind: KindCorruptContainer}
)

// Error is the single error type surfaced by codecs and the import/export service.
type Error struct {
	Kind   Kind
	Format Format // may be empty when the format could not be determined
	Op     string // "decode", "encode", "import", "export", ...
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Format != "" {
		msg = string(e.Format) + " " + msg
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so that errors.Is(err, ErrParseFailure) works for any
// parse failure regardless of format or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return t.Kind == KindParseFailure && e.Kind == KindCorruptContainer
}

// KindOf returns the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}

func newError(kind Kind, f Format, op string, err error) *Error {
	return &Error{Kind: kind, Format: f, Op: op, Err: err}
}

func parseErr(f Format, op string, err error) error { return newError(KindParseFailure, f, op, err) }

func corruptErr(f Format, op string, err error) error {
	return newError(KindCorruptContainer, f, op, err)
}

// Normalize maps an arbitrary error into the taxonomy. *Error values pass
// through unchanged; filesystem errors become IOFailure; everything else is a
// ParseFailure.
func Normalize(f Format, op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	var pe *fs.PathError
	var le *os.LinkError
	if errors.As(err, &pe) || errors.As(err, &le) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return newError(KindIOFailure, f, op, err)
	}
	return newError(KindParseFailure, f, op, err)
}

// Unsupported reports a format that no codec handles.
func Unsupported(name string) error {
	return newError(KindUnsupportedFormat, "", "dispatch", fmt.Errorf("no codec for %q", name))
}

// IOFailure wraps a storage error.
func IOFailure(f Format, op string, err error) error { return newError(KindIOFailure, f, op, err) }
