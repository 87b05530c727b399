package protocol

import (
	"encoding/json"
	"fmt"
)

// TerminalTag is the fixed header name of the version frame the host sends
// first on every connection.
const TerminalTag = "ViconTerminal"

// Version is the protocol version announced in the handshake frame.
type Version struct {
	Major int
	Minor int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// ParseVersion validates the handshake frame ["ViconTerminal"][major,minor]
// and extracts the announced version.
func ParseVersion(f Frame) (Version, error) {
	if f.Header.Kind != KindCallback || f.Header.Name != TerminalTag {
		return Version{}, ErrHandshake
	}
	var pair []int
	if err := json.Unmarshal(f.Payload, &pair); err != nil {
		return Version{}, fmt.Errorf("%w: version payload: %v", ErrHandshake, err)
	}
	if len(pair) != 2 {
		return Version{}, fmt.Errorf("%w: version payload length %d", ErrHandshake, len(pair))
	}
	return Version{Major: pair[0], Minor: pair[1]}, nil
}
