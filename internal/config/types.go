// Package config resolves, parses, validates, and defaults glassbridge configuration.
package config

// Config is the fully materialized runtime configuration.
type Config struct {
	Host          HostConfig
	Events        EventsConfig
	BLE           BLEConfig
	Speech        SpeechConfig
	Audio         AudioConfig
	Notifications NotificationsConfig
	Apps          AppsConfig
	Debug         DebugConfig
}

// HostConfig describes the host application the bridge serves.
type HostConfig struct {
	Package           string
	Activity          string
	SDKLevel          int
	ListenerComponent string
	SettingsCmd       CommandConfig
}

// EventsConfig controls the websocket event server.
type EventsConfig struct {
	Listen    string
	QueueSize int
}

// BLEConfig controls glasses discovery and writes.
type BLEConfig struct {
	Adapter        string
	NamePrefix     string
	SendIntervalMS int
	ScanIntervalMS int
}

// SpeechConfig controls the streaming recognizer.
type SpeechConfig struct {
	Language        string
	CredentialsFile string
	Endpoint        string
	Insecure        bool
	BreakerFailures int
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
	Cues     bool
}

// NotificationsConfig controls desktop notification posting.
type NotificationsConfig struct {
	AppName string
}

// AppsConfig lists directories scanned for desktop entries.
type AppsConfig struct {
	Dirs []string
}

// DebugConfig controls logging and debug artifacts.
type DebugConfig struct {
	LogLevel   string
	SpeechDump bool
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
