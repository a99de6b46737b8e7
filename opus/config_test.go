package opus

import "testing"

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.SampleRate != 48000 || cfg.Channels != 1 || cfg.Application != ApplicationAudio {
		t.Errorf("defaults = %+v", cfg)
	}

	explicit := Config{SampleRate: 8000, Channels: 2, Application: ApplicationVoIP, Unsafe: true}
	if explicit.withDefaults() != explicit {
		t.Error("withDefaults overwrote explicit values")
	}
}

func TestFrameSizes(t *testing.T) {
	got := frameSizes(48000)
	want := [6]int{120, 240, 480, 960, 1920, 2880}
	if got != want {
		t.Errorf("frameSizes(48000) = %v, want %v", got, want)
	}

	for _, rate := range []int{8000, 12000, 16000, 24000, 48000} {
		for _, n := range frameSizes(rate) {
			if !validFrameSize(rate, n) {
				t.Errorf("validFrameSize(%d, %d) = false", rate, n)
			}
		}
		if validFrameSize(rate, rate/100+1) {
			t.Errorf("validFrameSize(%d, %d) accepted an illegal size", rate, rate/100+1)
		}
	}
}
