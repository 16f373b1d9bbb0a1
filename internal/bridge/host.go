package bridge

// Host method names invoked from the bridge side.
const (
	HostFoundPairedGlasses      = "foundPairedGlasses"
	HostGlassesConnected        = "glassesConnected"
	HostGlassesConnecting       = "glassesConnecting"
	HostGlassesDisconnected     = "glassesDisconnected"
	HostGlassesConnectionFailed = "glassesConnectionFailed"
)

// PairPrefix marks the display name of a discovered glasses pair.
const PairPrefix = "Pair_"

// HostInvoker delivers a fire-and-forget method call to the host.
type HostInvoker interface {
	Invoke(method string, payload any)
}

// PairedDevice is a left/right glasses pair sharing one channel number.
type PairedDevice struct {
	ChannelNumber   string
	LeftDeviceName  string
	RightDeviceName string
}

// DeviceName is the pair name shown to the host.
func (d PairedDevice) DeviceName() string {
	return PairPrefix + d.ChannelNumber
}

// InfoJSON is the map shape the host expects for a paired device.
func (d PairedDevice) InfoJSON() map[string]any {
	return map[string]any{
		"channelNumber":   d.ChannelNumber,
		"leftDeviceName":  d.LeftDeviceName,
		"rightDeviceName": d.RightDeviceName,
		"deviceName":      d.DeviceName(),
	}
}

// Host forwards collaborator notifications to the host caller.
type Host struct {
	invoker HostInvoker
}

// NewHost wraps invoker; a nil invoker drops every notification.
func NewHost(invoker HostInvoker) Host {
	return Host{invoker: invoker}
}

func (h Host) FoundPairedGlasses(device PairedDevice) {
	h.invoke(HostFoundPairedGlasses, device.InfoJSON())
}

func (h Host) GlassesConnected(info map[string]any) {
	h.invoke(HostGlassesConnected, info)
}

func (h Host) GlassesConnecting(info map[string]any) {
	h.invoke(HostGlassesConnecting, info)
}

func (h Host) GlassesDisconnected(info map[string]any) {
	h.invoke(HostGlassesDisconnected, info)
}

func (h Host) GlassesConnectionFailed(status int) {
	h.invoke(HostGlassesConnectionFailed, status)
}

func (h Host) invoke(method string, payload any) {
	if h.invoker == nil {
		return
	}
	h.invoker.Invoke(method, payload)
}
