package bridge

// PackageQueryFlags select which installed packages a query returns.
type PackageQueryFlags uint32

const (
	GetMetaData              PackageQueryFlags = 0x00000080
	MatchUninstalledPackages PackageQueryFlags = 0x00002000
	MatchAll                 PackageQueryFlags = 0x00020000
)

// Has reports whether every bit of other is set.
func (f PackageQueryFlags) Has(other PackageQueryFlags) bool {
	return f&other == other
}

// Capabilities are the version-dependent platform behaviors the bridge uses.
type Capabilities struct {
	MinSDK                  int
	PackageQuery            PackageQueryFlags
	NotificationChannels    bool
	ImmutablePendingIntents bool
}

// capabilityTable is ordered by descending MinSDK.
var capabilityTable = []Capabilities{
	{MinSDK: 33, PackageQuery: MatchAll | GetMetaData, NotificationChannels: true, ImmutablePendingIntents: true},
	{MinSDK: 26, PackageQuery: MatchUninstalledPackages | GetMetaData, NotificationChannels: true, ImmutablePendingIntents: true},
	{MinSDK: 24, PackageQuery: MatchUninstalledPackages | GetMetaData, ImmutablePendingIntents: true},
	{MinSDK: 23, PackageQuery: GetMetaData, ImmutablePendingIntents: true},
	{MinSDK: 0, PackageQuery: GetMetaData},
}

// CapabilitiesFor resolves the capability row for a platform SDK level.
func CapabilitiesFor(sdkLevel int) Capabilities {
	for _, row := range capabilityTable {
		if sdkLevel >= row.MinSDK {
			return row
		}
	}
	return capabilityTable[len(capabilityTable)-1]
}

// pendingIntentFlags returns the flags used for notification content intents.
func (c Capabilities) pendingIntentFlags() PendingIntentFlags {
	if c.ImmutablePendingIntents {
		return PendingIntentImmutable | PendingIntentUpdateCurrent
	}
	return PendingIntentUpdateCurrent
}
