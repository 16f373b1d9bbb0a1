package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

type fileConfig struct {
	Host          *fileHost          `json:"host"`
	Events        *fileEvents        `json:"events"`
	BLE           *fileBLE           `json:"ble"`
	Speech        *fileSpeech        `json:"speech"`
	Audio         *fileAudio         `json:"audio"`
	Notifications *fileNotifications `json:"notifications"`
	Apps          *fileApps          `json:"apps"`
	Debug         *fileDebug         `json:"debug"`
}

type fileHost struct {
	Package           *string `json:"package"`
	Activity          *string `json:"activity"`
	SDKLevel          *int    `json:"sdk_level"`
	ListenerComponent *string `json:"listener_component"`
	SettingsCmd       *string `json:"settings_cmd"`
}

type fileEvents struct {
	Listen    *string `json:"listen"`
	QueueSize *int    `json:"queue_size"`
}

type fileBLE struct {
	Adapter        *string `json:"adapter"`
	NamePrefix     *string `json:"name_prefix"`
	SendIntervalMS *int    `json:"send_interval_ms"`
	ScanIntervalMS *int    `json:"scan_interval_ms"`
}

type fileSpeech struct {
	Language        *string `json:"language"`
	CredentialsFile *string `json:"credentials_file"`
	Endpoint        *string `json:"endpoint"`
	Insecure        *bool   `json:"insecure"`
	BreakerFailures *int    `json:"breaker_failures"`
}

type fileAudio struct {
	Input    *string `json:"input"`
	Fallback *string `json:"fallback"`
	Cues     *bool   `json:"cues"`
}

type fileNotifications struct {
	AppName *string `json:"app_name"`
}

type fileApps struct {
	Dirs *stringList `json:"dirs"`
}

type fileDebug struct {
	LogLevel   *string `json:"log_level"`
	SpeechDump *bool   `json:"speech_dump"`
}

// stringList accepts a string array or a colon-delimited string, the way
// XDG_DATA_DIRS is written.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = trimmedNonEmpty(list)
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = trimmedNonEmpty(strings.Split(single, ":"))
		return nil
	}

	return fmt.Errorf("expected string array or colon-delimited string")
}

func trimmedNonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Parse overlays JSONC content onto base and validates the result.
func Parse(content string, base Config) (Config, []Warning, error) {
	if strings.TrimSpace(content) == "" {
		warnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, warnings, nil
	}

	var payload fileConfig
	if err := decodeJSONC(content, &payload); err != nil {
		return Config{}, nil, err
	}

	cfg := base
	if err := payload.applyTo(&cfg); err != nil {
		return Config{}, nil, err
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func (payload fileConfig) applyTo(cfg *Config) error {
	if h := payload.Host; h != nil {
		setString(&cfg.Host.Package, h.Package)
		setString(&cfg.Host.Activity, h.Activity)
		setInt(&cfg.Host.SDKLevel, h.SDKLevel)
		setString(&cfg.Host.ListenerComponent, h.ListenerComponent)
		if h.SettingsCmd != nil {
			cmd, err := parseCommand(*h.SettingsCmd)
			if err != nil {
				return fmt.Errorf("invalid host.settings_cmd: %w", err)
			}
			cfg.Host.SettingsCmd = cmd
		}
	}

	if e := payload.Events; e != nil {
		setString(&cfg.Events.Listen, e.Listen)
		setInt(&cfg.Events.QueueSize, e.QueueSize)
	}

	if b := payload.BLE; b != nil {
		setString(&cfg.BLE.Adapter, b.Adapter)
		setString(&cfg.BLE.NamePrefix, b.NamePrefix)
		setInt(&cfg.BLE.SendIntervalMS, b.SendIntervalMS)
		setInt(&cfg.BLE.ScanIntervalMS, b.ScanIntervalMS)
	}

	if s := payload.Speech; s != nil {
		setString(&cfg.Speech.Language, s.Language)
		setString(&cfg.Speech.CredentialsFile, s.CredentialsFile)
		setString(&cfg.Speech.Endpoint, s.Endpoint)
		if s.Insecure != nil {
			cfg.Speech.Insecure = *s.Insecure
		}
		setInt(&cfg.Speech.BreakerFailures, s.BreakerFailures)
	}

	if a := payload.Audio; a != nil {
		if a.Input != nil {
			cfg.Audio.Input = *a.Input
		}
		if a.Fallback != nil {
			cfg.Audio.Fallback = *a.Fallback
		}
		if a.Cues != nil {
			cfg.Audio.Cues = *a.Cues
		}
	}

	if n := payload.Notifications; n != nil {
		setString(&cfg.Notifications.AppName, n.AppName)
	}

	if a := payload.Apps; a != nil && a.Dirs != nil {
		cfg.Apps.Dirs = append([]string(nil), (*a.Dirs)...)
	}

	if d := payload.Debug; d != nil {
		setString(&cfg.Debug.LogLevel, d.LogLevel)
		if d.SpeechDump != nil {
			cfg.Debug.SpeechDump = *d.SpeechDump
		}
	}

	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}
