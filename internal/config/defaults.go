package config

// Default returns the runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Host: HostConfig{
			Package:           "com.even.glassbridge",
			Activity:          "MainActivity",
			SDKLevel:          34,
			ListenerComponent: "com.even.glassbridge/.NotificationListener",
			SettingsCmd:       mustParseCommand("gnome-control-center notifications"),
		},
		Events: EventsConfig{
			Listen:    "127.0.0.1:8765",
			QueueSize: 64,
		},
		BLE: BLEConfig{
			Adapter:        "hci0",
			NamePrefix:     "Even G1",
			SendIntervalMS: 8,
			ScanIntervalMS: 1000,
		},
		Speech: SpeechConfig{
			Language:        "EN",
			BreakerFailures: 3,
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
			Cues:     true,
		},
		Notifications: NotificationsConfig{AppName: "glassbridge"},
		Debug:         DebugConfig{LogLevel: "info"},
	}
}
