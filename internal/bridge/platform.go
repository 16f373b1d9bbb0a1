package bridge

import (
	"context"
	"time"
)

// DeviceSession owns the glasses BLE connection lifecycle.
type DeviceSession interface {
	StartScan(context.Context) error
	StopScan(context.Context) error
	Connect(ctx context.Context, channel string) error
	Disconnect(context.Context) error
	Send(ctx context.Context, payload map[string]any) error
	Connected() bool
}

// Speech owns background voice capture and recognition.
type Speech interface {
	StartRecognition(ctx context.Context, language string) error
	StopRecognition(context.Context) error
	Initialize(ctx context.Context, credentialsJSON string) error
}

// CallState resolves caller display names.
type CallState interface {
	CallerDisplayName(ctx context.Context, phoneNumber string) (string, bool, error)
}

// ListenerService is a running notification listener service instance.
type ListenerService interface {
	AccessEnabled(context.Context) (bool, error)
	OpenAccessSettings(context.Context) error
}

// ListenerRegistry exposes the listener service instance when it is running.
type ListenerRegistry interface {
	Instance() ListenerService
}

// ForegroundService controls the notification forwarding service.
type ForegroundService interface {
	Start(context.Context) error
	Stop(context.Context) error
}

// SecureSettings reads platform secure settings strings.
type SecureSettings interface {
	SecureString(ctx context.Context, name string) (string, bool, error)
}

// ActivityLauncher starts platform activities for an intent.
type ActivityLauncher interface {
	StartActivity(context.Context, Intent) error
}

// PackageManager enumerates installed packages.
type PackageManager interface {
	InstalledPackages(ctx context.Context, flags PackageQueryFlags) ([]PackageInfo, error)
	ApplicationLabel(ctx context.Context, pkg PackageInfo) (string, error)
}

// NotificationManager owns notification channels and posted notifications.
type NotificationManager interface {
	NotificationChannel(ctx context.Context, id string) (NotificationChannel, bool, error)
	CreateNotificationChannel(context.Context, NotificationChannel) error
	Notify(ctx context.Context, id int, n Notification) error
}

// Permissions answers runtime permission queries.
type Permissions interface {
	NotificationPermissionGranted(context.Context) (bool, error)
}

// BatteryOptimizer is only available when the host context supports it.
type BatteryOptimizer interface {
	RequestIgnoreOptimization(context.Context) error
	OptimizationDisabled(context.Context) (bool, error)
}

// PackageInfo is one installed package as reported by the package manager.
// Err is set when the entry could not be read.
type PackageInfo struct {
	PackageName string
	Application *ApplicationInfo
	Err         error
}

// ApplicationInfo carries per-application metadata.
type ApplicationInfo struct {
	Label     string
	SourceDir string
	Hidden    bool
}

// InstalledApp is one getInstalledApps entry.
type InstalledApp struct {
	PackageName string `json:"packageName"`
	AppName     string `json:"appName"`
}

// Importance mirrors platform notification channel importance levels.
type Importance int

const (
	ImportanceNone    Importance = 0
	ImportanceMin     Importance = 1
	ImportanceLow     Importance = 2
	ImportanceDefault Importance = 3
	ImportanceHigh    Importance = 4
	ImportanceMax     Importance = 5
)

// NotificationChannel is a named notification category.
type NotificationChannel struct {
	ID          string
	Name        string
	Description string
	Importance  Importance
	Vibration   bool
	Lights      bool
	ShowBadge   bool
	Silent      bool
}

// Priority mirrors notification priority for pre-channel platforms.
type Priority int

const (
	PriorityDefault Priority = 0
	PriorityHigh    Priority = 1
)

// Notification is one posted notification.
type Notification struct {
	ChannelID     string
	SmallIcon     string
	Title         string
	Text          string
	BigText       string
	Priority      Priority
	ContentIntent *PendingIntent
	AutoCancel    bool
	ShowWhen      bool
	When          time.Time
}

// IntentFlags are activity launch flags.
type IntentFlags uint32

const (
	FlagActivityClearTask IntentFlags = 0x00008000
	FlagActivityNewTask   IntentFlags = 0x10000000
)

// Intent names an action or a target component to launch.
type Intent struct {
	Action    string
	Component string
	Flags     IntentFlags
}

// PendingIntentFlags control pending intent mutability and reuse.
type PendingIntentFlags uint32

const (
	PendingIntentImmutable     PendingIntentFlags = 0x04000000
	PendingIntentUpdateCurrent PendingIntentFlags = 0x08000000
)

// PendingIntent is an intent handed to another component for later launch.
type PendingIntent struct {
	Intent      Intent
	RequestCode int
	Flags       PendingIntentFlags
}

// Platform describes the host application the bridge runs inside.
type Platform struct {
	SDKLevel          int
	HostPackage       string
	HostActivity      string
	ListenerComponent string
	// SpeechLanguage is the startEvenAI capture language; empty means
	// DefaultSpeechLanguage.
	SpeechLanguage string
}
