package opus

import (
	"github.com/wippyai/opus-bridge/engine"
	"github.com/wippyai/opus-bridge/errors"
)

// Application is the encoder's optimization hint.
type Application int

const (
	ApplicationVoIP               Application = engine.ApplicationVoIP
	ApplicationAudio              Application = engine.ApplicationAudio
	ApplicationRestrictedLowDelay Application = engine.ApplicationRestrictedLowDelay
)

// Config configures a handle. The zero value of a field selects its default.
type Config struct {
	// SampleRate in Hz: 8000, 12000, 16000, 24000 or 48000. Default 48000.
	SampleRate int
	// Channels: 1 or 2. Default 1.
	Channels int
	// Application hint, encoders only. Default ApplicationAudio.
	Application Application
	// Unsafe keeps codec state resident in engine memory. The caller owns it
	// and must call Destroy, or the state block leaks.
	Unsafe bool
}

func (c Config) withDefaults() Config {
	if c.SampleRate == 0 {
		c.SampleRate = 48000
	}
	if c.Channels == 0 {
		c.Channels = 1
	}
	if c.Application == 0 {
		c.Application = ApplicationAudio
	}
	return c
}

func validRate(rate int) bool {
	switch rate {
	case 8000, 12000, 16000, 24000, 48000:
		return true
	}
	return false
}

func (c Config) validate(encoder bool) error {
	if c.Channels != 1 && c.Channels != 2 {
		return errors.InvalidValue(errors.PhaseConfig, "channels", c.Channels, "must be 1 or 2")
	}
	if !validRate(c.SampleRate) {
		return errors.InvalidValue(errors.PhaseConfig, "sample_rate", c.SampleRate,
			"must be 8000, 12000, 16000, 24000 or 48000")
	}
	if encoder {
		switch c.Application {
		case ApplicationVoIP, ApplicationAudio, ApplicationRestrictedLowDelay:
		default:
			return errors.InvalidValue(errors.PhaseConfig, "application", int(c.Application),
				"must be VoIP, Audio or RestrictedLowDelay")
		}
	}
	return nil
}

// frameSizes lists the legal encode frame sizes in samples per channel for a
// sample rate: 2.5, 5, 10, 20, 40 and 60ms.
func frameSizes(rate int) [6]int {
	return [6]int{rate / 400, rate / 200, rate / 100, rate / 50, rate / 25, 3 * rate / 50}
}

func validFrameSize(rate, frameSize int) bool {
	for _, n := range frameSizes(rate) {
		if frameSize == n {
			return true
		}
	}
	return false
}
