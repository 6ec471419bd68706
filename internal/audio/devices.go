// Package audio handles Pulse device discovery, turn capture, and cue playback.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// ClientName is the application name talkthru registers with the sound server.
const ClientName = "talkthru"

// Device describes one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// Usable reports whether the source can record right now.
func (d Device) Usable() bool {
	return d.Available && !d.Muted
}

// Preference is the configured primary and fallback device terms.
// Empty or "default" means the server's default source.
type Preference struct {
	Input    string
	Fallback string
}

// Selection is the resolved capture source. Warning is set when the primary
// preference could not be used.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

func connect(icon string) (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(ClientName),
		pulse.ClientApplicationIconName(icon),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// ListDevices returns the Pulse input sources.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := connect("audio-input-microphone")
	if err != nil {
		return nil, err
	}
	defer client.Close()

	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}

	var infos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &infos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return devicesFromInfo(infos, defaultSource.ID()), nil
}

func devicesFromInfo(infos pulseproto.GetSourceInfoListReply, defaultID string) []Device {
	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		if info == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          info.SourceName,
			Description: info.Device,
			State:       sourceStateString(info.State),
			Available:   sourceAvailable(info),
			Muted:       info.Mute,
			Default:     info.SourceName == defaultID,
		})
	}
	return devices
}

// SelectDevice lists live devices and resolves pref against them.
func SelectDevice(ctx context.Context, pref Preference) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return Select(devices, pref)
}

// Select applies the selection policy to a device list: the primary must be
// usable, otherwise the fallback (or default source) is taken with a warning.
func Select(devices []Device, pref Preference) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio input devices found")
	}

	input := normalizeTerm(pref.Input)
	fallback := normalizeTerm(pref.Fallback)

	primary, err := resolve(devices, input, "audio.input")
	if err != nil {
		return Selection{}, err
	}
	if primary.Usable() {
		return Selection{Device: primary}, nil
	}

	reason := "unavailable"
	if primary.Muted {
		reason = "muted"
	}

	alternate, err := resolve(devices, fallback, "audio.fallback")
	if err != nil {
		return Selection{}, fmt.Errorf("primary input %q is %s and no usable fallback: %w", primary.ID, reason, err)
	}
	switch {
	case !alternate.Available:
		return Selection{}, fmt.Errorf("audio fallback device %q is not available", alternate.ID)
	case alternate.Muted:
		return Selection{}, fmt.Errorf("audio fallback device %q is muted", alternate.ID)
	}

	return Selection{
		Device:   alternate,
		Warning:  fmt.Sprintf("audio.input %q is %s; falling back to %q", primary.ID, reason, alternate.ID),
		Fallback: primary.ID != alternate.ID,
	}, nil
}

func normalizeTerm(term string) string {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "default" {
		return ""
	}
	return term
}

// resolve finds the device for term; empty term means the default source.
func resolve(devices []Device, term string, key string) (Device, error) {
	for _, dev := range devices {
		if term == "" && dev.Default {
			return dev, nil
		}
		if term != "" && deviceMatches(dev, term) {
			return dev, nil
		}
	}
	if term == "" {
		return Device{}, errors.New("default audio source is unavailable")
	}
	return Device{}, fmt.Errorf("%s %q did not match any device", key, term)
}

// deviceMatches reports whether term is a substring of the device id or description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(device.ID), term) ||
		strings.Contains(strings.ToLower(device.Description), term)
}

func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	for _, port := range source.Ports {
		if port.Name != source.ActivePortName {
			continue
		}
		// unknown=0, no=1, yes=2
		return port.Available != 1
	}
	return true
}
