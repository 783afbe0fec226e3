package launch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rwe-net/lobby-server/types"
)

// BasePort is the convention for per-slot game ports: slot i listens on
// BasePort+i.
const BasePort = 6670

var ipv4HostPattern = regexp.MustCompile(`^(?:::ffff:)?(\d+)\.(\d+)\.(\d+)\.(\d+)$`)

// Controller describes who drives one slot in the launched game.
type Controller interface {
	Serialize() string
}

type HumanController struct{}

type ComputerController struct{}

type RemoteController struct {
	Host string
	Port int
}

func (HumanController) Serialize() string    { return "Human" }
func (ComputerController) Serialize() string { return "Computer" }

func (c RemoteController) Serialize() string {
	return "Network," + HostPort(c.Host, c.Port)
}

// SerializeHost normalizes dotted-quad addresses to their IPv6-mapped form so
// the game always binds v6 sockets.
func SerializeHost(host string) string {
	if m := ipv4HostPattern.FindStringSubmatch(host); m != nil {
		return fmt.Sprintf("::ffff:%s.%s.%s.%s", m[1], m[2], m[3], m[4])
	}
	return host
}

func HostPort(host string, port int) string {
	return fmt.Sprintf("[%s]:%d", SerializeHost(host), port)
}

// ArgsSlot is one slot of the launched game's player list.
type ArgsSlot struct {
	Filled     bool
	Name       string
	Side       types.PlayerSide
	Color      int
	Controller Controller
}

// RweArgs is the full launch configuration handed to the game executable.
type RweArgs struct {
	DataPaths []string
	Map       string
	Interface string
	Port      int
	Players   []ArgsSlot
}

// Serialize renders the command-line argument list. Output is deterministic:
// identical input produces a byte-identical argv.
func (a RweArgs) Serialize() []string {
	out := make([]string, 0)
	for _, path := range a.DataPaths {
		out = append(out, "--data-path", path)
	}
	if a.Map != "" {
		out = append(out, "--map", a.Map)
	}
	if a.Interface != "" {
		out = append(out, "--interface", a.Interface)
	}
	if a.Port != 0 {
		out = append(out, "--port", strconv.Itoa(a.Port))
	}
	for _, p := range a.Players {
		if !p.Filled {
			out = append(out, "--player", "empty")
			continue
		}
		name := strings.ReplaceAll(p.Name, ";", "_")
		out = append(out, "--player", fmt.Sprintf("%s;%s;%s;%d", name, p.Controller.Serialize(), p.Side, p.Color))
	}
	return out
}

// BuildArgs computes the launch configuration from the room state at start
// time: the local player drives their own slot, every other filled slot is
// dialed at the address the server resolved for it on port BasePort plus the
// slot index, and empty or closed slots launch empty.
func BuildArgs(slots []types.PlayerSlot, mapName string, activeMods []string, localPlayerID int, addresses []types.AddressEntry, installed []InstalledMod) (RweArgs, error) {
	if mapName == "" {
		return RweArgs{}, fmt.Errorf("map is not set")
	}
	addrByID := make(map[int]string, len(addresses))
	for _, a := range addresses {
		addrByID[a.PlayerID] = a.Address
	}
	players := make([]ArgsSlot, len(slots))
	localSlot := -1
	for i, s := range slots {
		if s.State != types.SlotFilled {
			players[i] = ArgsSlot{}
			continue
		}
		var controller Controller
		if s.Player.ID == localPlayerID {
			localSlot = i
			controller = HumanController{}
		} else {
			addr, ok := addrByID[s.Player.ID]
			if !ok {
				return RweArgs{}, fmt.Errorf("no address for player %d", s.Player.ID)
			}
			controller = RemoteController{Host: addr, Port: BasePort + i}
		}
		players[i] = ArgsSlot{
			Filled:     true,
			Name:       s.Player.Name,
			Side:       s.Player.Side,
			Color:      s.Player.Color,
			Controller: controller,
		}
	}
	if localSlot == -1 {
		return RweArgs{}, fmt.Errorf("local player %d has no slot", localPlayerID)
	}
	return RweArgs{
		DataPaths: ResolveDataPaths(activeMods, installed),
		Map:       mapName,
		Port:      BasePort + localSlot,
		Players:   players,
	}, nil
}
