package asmgen

import "errors"

// ErrUnknownFormat is returned by DialectFor when asked for a
// --format value other than nasm, masm, att or gas.
var ErrUnknownFormat = errors.New("unknown assembly format")
