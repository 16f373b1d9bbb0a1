// Package glasses manages the BLE session with a left/right pair of glasses.
package glasses

import (
	"strings"

	"github.com/rbright/glassbridge/internal/bridge"
)

// Side identifies one arm of the glasses.
type Side string

const (
	Left  Side = "L"
	Right Side = "R"
)

// DefaultNamePrefix is the advertised name prefix of the glasses.
const DefaultNamePrefix = "Even G1"

// armName is a parsed advertised name <prefix>_<channel>_<L|R>_<suffix>.
type armName struct {
	channel string
	side    Side
}

func parseArmName(name string, prefix string) (armName, bool) {
	if prefix == "" {
		prefix = DefaultNamePrefix
	}
	rest, ok := strings.CutPrefix(name, prefix+"_")
	if !ok {
		return armName{}, false
	}
	parts := strings.Split(rest, "_")
	if len(parts) < 2 || parts[0] == "" {
		return armName{}, false
	}
	side := Side(parts[1])
	if side != Left && side != Right {
		return armName{}, false
	}
	return armName{channel: parts[0], side: side}, true
}

// pair collects both arms seen for one channel.
type pair struct {
	channel string
	names   map[Side]string
	paths   map[Side]string
}

func newPair(channel string) *pair {
	return &pair{channel: channel, names: make(map[Side]string), paths: make(map[Side]string)}
}

func (p *pair) complete() bool {
	return p.paths[Left] != "" && p.paths[Right] != ""
}

func (p *pair) device() bridge.PairedDevice {
	return bridge.PairedDevice{
		ChannelNumber:   p.channel,
		LeftDeviceName:  p.names[Left],
		RightDeviceName: p.names[Right],
	}
}
