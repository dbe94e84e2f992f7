// Package daemon builds and sends commands to the firing daemon.
//
// The daemon has a local HTTP API.
// Endpoint: POST http://<host>:<port>/api/command
//
// Commands are fire-and-forget: a 200 response means the daemon accepted the
// request, not that it took effect. Confirmation arrives later as a state snapshot
// on the live feed.
package daemon

import (
	"fmt"

	"github.com/jwulff/pyroshow-go/internal/domain"
)

// CommandType names an outbound daemon command.
type CommandType string

const (
	CommandLoadShow   CommandType = "load_show"
	CommandUnloadShow CommandType = "unload_show"
	CommandManualFire CommandType = "manual_fire"
	CommandStartShow  CommandType = "start_show"
	CommandStopShow   CommandType = "stop_show"
	CommandArm        CommandType = "arm"
	CommandDisarm     CommandType = "disarm"
)

// Command is the JSON body posted to the daemon. Only the parameters relevant to
// Type are set.
type Command struct {
	Type   CommandType `json:"type"`
	ShowID int         `json:"show_id,omitempty"`
	Zone   string      `json:"zone,omitempty"`
	Target int         `json:"target,omitempty"`
}

func (c Command) String() string {
	switch c.Type {
	case CommandLoadShow:
		return fmt.Sprintf("%s show %d", c.Type, c.ShowID)
	case CommandManualFire:
		return fmt.Sprintf("%s %s:%d", c.Type, c.Zone, c.Target)
	}
	return string(c.Type)
}

// CreateLoadShowCommand creates a load_show command. Show ids start at 1.
func CreateLoadShowCommand(showID int) (Command, error) {
	if showID <= 0 {
		return Command{}, &domain.InvalidInputError{Field: "show_id", Reason: "must be > 0"}
	}
	return Command{Type: CommandLoadShow, ShowID: showID}, nil
}

// CreateUnloadShowCommand creates an unload_show command.
func CreateUnloadShowCommand() Command {
	return Command{Type: CommandUnloadShow}
}

// CreateManualFireCommand creates a manual_fire command for one address.
func CreateManualFireCommand(zone string, target int) (Command, error) {
	if zone == "" {
		return Command{}, &domain.InvalidInputError{Field: "zone", Reason: "required"}
	}
	if target <= 0 {
		return Command{}, &domain.InvalidInputError{Field: "target", Reason: "must be > 0"}
	}
	return Command{Type: CommandManualFire, Zone: zone, Target: target}, nil
}

// CreateStartShowCommand creates a start_show command.
func CreateStartShowCommand() Command {
	return Command{Type: CommandStartShow}
}

// CreateStopShowCommand creates a stop_show command.
func CreateStopShowCommand() Command {
	return Command{Type: CommandStopShow}
}

// CreateArmCommand creates an arm command.
func CreateArmCommand() Command {
	return Command{Type: CommandArm}
}

// CreateDisarmCommand creates a disarm command.
func CreateDisarmCommand() Command {
	return Command{Type: CommandDisarm}
}

// ParseCommand builds a command from its type name and raw parameters, as typed on
// a command line. Parameters are ignored by commands that take none.
func ParseCommand(name string, showID int, zone string, target int) (Command, error) {
	switch CommandType(name) {
	case CommandLoadShow:
		return CreateLoadShowCommand(showID)
	case CommandUnloadShow:
		return CreateUnloadShowCommand(), nil
	case CommandManualFire:
		return CreateManualFireCommand(zone, target)
	case CommandStartShow:
		return CreateStartShowCommand(), nil
	case CommandStopShow:
		return CreateStopShowCommand(), nil
	case CommandArm:
		return CreateArmCommand(), nil
	case CommandDisarm:
		return CreateDisarmCommand(), nil
	}
	return Command{}, &domain.InvalidInputError{Field: "command", Reason: fmt.Sprintf("unknown command %q", name)}
}
