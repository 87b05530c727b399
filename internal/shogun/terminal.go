package shogun

import (
	"github.com/danmuck/shogunctl/internal/client"
)

// AppInfo identifies the application serving the terminal.
type AppInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Changeset string `json:"changeset"`
}

// TerminalService covers the host's built-in terminal commands.
type TerminalService struct {
	c *client.Client
}

func NewTerminalService(c *client.Client) *TerminalService {
	return &TerminalService{c: c}
}

// AppInfo reports the application name, version, and changeset.
func (s *TerminalService) AppInfo() (AppInfo, error) {
	reply, err := s.c.Call(CmdAppInfo)
	if err != nil {
		return AppInfo{}, err
	}
	var info AppInfo
	if err := reply.Scan(&info.Name, &info.Version, &info.Changeset); err != nil {
		return AppInfo{}, err
	}
	return info, nil
}

// CheckSchemas asks the host which of the given command schemas it does
// not support. An empty result means every schema matched.
func (s *TerminalService) CheckSchemas(schemas []string) ([]string, error) {
	reply, err := s.c.Call(CmdCheckSchemas, schemas)
	if err != nil {
		return nil, err
	}
	var mismatches []string
	if err := reply.Scan(&mismatches); err != nil {
		return nil, err
	}
	return mismatches, nil
}
