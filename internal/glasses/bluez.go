package glasses

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/rbright/glassbridge/internal/busctl"
)

// Nordic UART service characteristics used by the glasses.
const (
	uartRXUUID = "6e400002-b5a3-f393-e0a9-e50e24dcca9e"
	uartTXUUID = "6e400003-b5a3-f393-e0a9-e50e24dcca9e"
)

const (
	ifaceDevice         = "org.bluez.Device1"
	ifaceCharacteristic = "org.bluez.GattCharacteristic1"
	ifaceProperties     = "org.freedesktop.DBus.Properties"
)

// RemoteDevice is one BlueZ device object.
type RemoteDevice struct {
	Path      string
	Name      string
	Address   string
	Connected bool
}

// Characteristic is one GATT characteristic object.
type Characteristic struct {
	Path   string
	UUID   string
	Device string
}

// Inventory is the subset of BlueZ's object tree the session cares about.
type Inventory struct {
	Devices         []RemoteDevice
	Characteristics []Characteristic
}

// Change is one PropertiesChanged signal.
type Change struct {
	Path      string
	Interface string
	Changed   map[string]dbus.Variant
}

// BlueZ is the adapter surface the session drives.
type BlueZ interface {
	StartDiscovery(ctx context.Context) error
	StopDiscovery(ctx context.Context) error
	Inventory(ctx context.Context) (Inventory, error)
	ConnectDevice(ctx context.Context, path string) error
	DisconnectDevice(ctx context.Context, path string) error
	StartNotify(ctx context.Context, charPath string) error
	WriteValue(ctx context.Context, charPath string, data []byte) error
	Watch(ctx context.Context, paths []string, fn func(Change)) error
}

// CLI drives BlueZ on the system bus: method calls through busctl and
// signal watches over a godbus connection.
type CLI struct {
	Adapter string
}

func (c CLI) adapterPath() string {
	adapter := strings.TrimSpace(c.Adapter)
	if adapter == "" {
		adapter = "hci0"
	}
	return "/org/bluez/" + adapter
}

func (c CLI) call(ctx context.Context, path string, iface string, member string, signature string, args ...string) error {
	_, err := busctl.Call(ctx, busctl.System, busctl.Method{
		Service:   "org.bluez",
		Path:      path,
		Interface: iface,
		Member:    member,
	}, signature, args...)
	return err
}

// AdapterPowered reports whether the configured adapter exists and is on.
func (c CLI) AdapterPowered(ctx context.Context) (bool, error) {
	var powered bool
	if err := busctl.GetProperty(ctx, busctl.System, "org.bluez", c.adapterPath(), "org.bluez.Adapter1", "Powered", &powered); err != nil {
		return false, err
	}
	return powered, nil
}

func (c CLI) StartDiscovery(ctx context.Context) error {
	return c.call(ctx, c.adapterPath(), "org.bluez.Adapter1", "StartDiscovery", "")
}

func (c CLI) StopDiscovery(ctx context.Context) error {
	return c.call(ctx, c.adapterPath(), "org.bluez.Adapter1", "StopDiscovery", "")
}

func (c CLI) ConnectDevice(ctx context.Context, path string) error {
	return c.call(ctx, path, ifaceDevice, "Connect", "")
}

func (c CLI) DisconnectDevice(ctx context.Context, path string) error {
	return c.call(ctx, path, ifaceDevice, "Disconnect", "")
}

func (c CLI) StartNotify(ctx context.Context, charPath string) error {
	return c.call(ctx, charPath, ifaceCharacteristic, "StartNotify", "")
}

// WriteValue writes data without response.
func (c CLI) WriteValue(ctx context.Context, charPath string, data []byte) error {
	args := make([]string, 0, len(data)+5)
	args = append(args, strconv.Itoa(len(data)))
	for _, b := range data {
		args = append(args, strconv.Itoa(int(b)))
	}
	args = append(args, "1", "type", "s", "command")
	return c.call(ctx, charPath, ifaceCharacteristic, "WriteValue", "aya{sv}", args...)
}

// Inventory reads the managed object tree and keeps devices under this
// adapter and their characteristics.
func (c CLI) Inventory(ctx context.Context) (Inventory, error) {
	var reply []managedObjects
	err := busctl.CallJSON(ctx, busctl.System, busctl.Method{
		Service:   "org.bluez",
		Path:      "/",
		Interface: "org.freedesktop.DBus.ObjectManager",
		Member:    "GetManagedObjects",
	}, &reply, "")
	if err != nil {
		return Inventory{}, err
	}
	if len(reply) == 0 {
		return Inventory{}, nil
	}
	return parseInventory(reply[0], c.adapterPath()), nil
}

// managedObjects is object path -> interface -> property -> value.
type managedObjects map[string]map[string]map[string]busctl.Value

func parseInventory(objects managedObjects, adapterPath string) Inventory {
	var inv Inventory
	for path, ifaces := range objects {
		if !strings.HasPrefix(path, adapterPath+"/") {
			continue
		}
		if props, ok := ifaces[ifaceDevice]; ok {
			inv.Devices = append(inv.Devices, RemoteDevice{
				Path:      path,
				Name:      stringProp(props, "Name"),
				Address:   stringProp(props, "Address"),
				Connected: boolProp(props, "Connected"),
			})
		}
		if props, ok := ifaces[ifaceCharacteristic]; ok {
			inv.Characteristics = append(inv.Characteristics, Characteristic{
				Path:   path,
				UUID:   strings.ToLower(stringProp(props, "UUID")),
				Device: deviceOf(path),
			})
		}
	}
	sort.Slice(inv.Devices, func(i, j int) bool { return inv.Devices[i].Path < inv.Devices[j].Path })
	sort.Slice(inv.Characteristics, func(i, j int) bool { return inv.Characteristics[i].Path < inv.Characteristics[j].Path })
	return inv
}

// deviceOf trims a characteristic path to its dev_XX object path.
func deviceOf(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if strings.HasPrefix(part, "dev_") {
			return strings.Join(parts[:i+1], "/")
		}
	}
	return ""
}

func stringProp(props map[string]busctl.Value, name string) string {
	var s string
	if v, ok := props[name]; ok {
		_ = v.Decode(&s)
	}
	return s
}

func boolProp(props map[string]busctl.Value, name string) bool {
	var b bool
	if v, ok := props[name]; ok {
		_ = v.Decode(&b)
	}
	return b
}
