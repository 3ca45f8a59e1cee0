package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/dlbridge/internal/domain"
)

const (
	DefaultServiceHost          = "localhost"
	DefaultServicePort          = 1337
	DefaultDownloadQuality      = "flac"
	DefaultNotificationsEnabled = true
)

// ErrNotFound is returned by stores that hold no settings yet.
var ErrNotFound = errors.New("settings not found")

// Settings are the user-facing options shared with page integrations.
type Settings struct {
	ServiceHost          string `yaml:"serviceHost" json:"serviceHost"`
	ServicePort          int    `yaml:"servicePort" json:"servicePort"`
	DownloadQuality      string `yaml:"downloadQuality" json:"downloadQuality"`
	NotificationsEnabled bool   `yaml:"notificationsEnabled" json:"notificationsEnabled"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		ServiceHost:          DefaultServiceHost,
		ServicePort:          DefaultServicePort,
		DownloadQuality:      DefaultDownloadQuality,
		NotificationsEnabled: DefaultNotificationsEnabled,
	}
}

// Validate checks ranges and required values.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.ServiceHost) == "" {
		return fmt.Errorf("%w: serviceHost must not be empty", domain.ErrInvalidRequest)
	}
	if s.ServicePort < 1 || s.ServicePort > 65535 {
		return fmt.Errorf("%w: servicePort must be in 1..65535, got %d", domain.ErrInvalidRequest, s.ServicePort)
	}
	if strings.TrimSpace(s.DownloadQuality) == "" {
		return fmt.Errorf("%w: downloadQuality must not be empty", domain.ErrInvalidRequest)
	}
	return nil
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	ServiceHost          *string `json:"serviceHost,omitempty"`
	ServicePort          *int    `json:"servicePort,omitempty"`
	DownloadQuality      *string `json:"downloadQuality,omitempty"`
	NotificationsEnabled *bool   `json:"notificationsEnabled,omitempty"`
}

// Apply returns s with the patch applied.
func (p Patch) Apply(s Settings) Settings {
	if p.ServiceHost != nil {
		s.ServiceHost = strings.TrimSpace(*p.ServiceHost)
	}
	if p.ServicePort != nil {
		s.ServicePort = *p.ServicePort
	}
	if p.DownloadQuality != nil {
		s.DownloadQuality = strings.TrimSpace(*p.DownloadQuality)
	}
	if p.NotificationsEnabled != nil {
		s.NotificationsEnabled = *p.NotificationsEnabled
	}
	return s
}

// Store persists settings.
type Store interface {
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
}
