// SPDX-License-Identifier: MIT
package audio

// Device describes one PortAudio-visible audio device, trimmed to the
// fields the CLI and config validation care about.
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
}

// GetDevices returns all devices PortAudio can see. It initializes and
// terminates PortAudio itself, so it is safe to call from the terminal
// device picker (the "devices" subcommand) without an otherwise-running
// pipeline.
func GetDevices() ([]Device, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	defer Terminate()

	infos, err := paDevices()
	if err != nil {
		return nil, err
	}

	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = Device{
			ID:                i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
		}
	}
	return devices, nil
}
