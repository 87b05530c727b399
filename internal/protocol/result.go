package protocol

import "fmt"

// Code is the 32-bit result code carried in reply headers. Zero means
// success; every other value is host-defined and surfaced to callers as data
// rather than as a transport fault.
type Code uint32

const Ok Code = 0

// OK reports whether the code is the success value.
func (c Code) OK() bool {
	return c == Ok
}

func (c Code) String() string {
	if c == Ok {
		return "ok"
	}
	return fmt.Sprintf("code(0x%08x)", uint32(c))
}
