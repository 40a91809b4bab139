package audio

import (
	"errors"
	"testing"
)

func TestSelectConfig(t *testing.T) {
	tests := []struct {
		name    string
		configs []SupportedConfig
		target  int
		want    CaptureConfig
		wantErr bool
	}{
		{
			name: "target supported directly",
			configs: []SupportedConfig{
				{Channels: 1, Format: Float32, MinRate: 8000, MaxRate: 48000},
			},
			target: 16000,
			want:   CaptureConfig{Channels: 1, Format: Float32, SampleRate: 16000},
		},
		{
			name: "first matching config wins",
			configs: []SupportedConfig{
				{Channels: 2, Format: Int16, MinRate: 16000, MaxRate: 16000},
				{Channels: 1, Format: Float32, MinRate: 16000, MaxRate: 16000},
			},
			target: 16000,
			want:   CaptureConfig{Channels: 2, Format: Int16, SampleRate: 16000},
		},
		{
			name: "falls back to 48k",
			configs: []SupportedConfig{
				{Channels: 2, Format: Float32, MinRate: 44100, MaxRate: 48000},
			},
			target: 16000,
			want:   CaptureConfig{Channels: 2, Format: Float32, SampleRate: 48000},
		},
		{
			name: "fallback order beats config order",
			configs: []SupportedConfig{
				{Channels: 1, Format: Int16, MinRate: 44100, MaxRate: 44100},
				{Channels: 1, Format: Float32, MinRate: 48000, MaxRate: 48000},
			},
			target: 16000,
			want:   CaptureConfig{Channels: 1, Format: Float32, SampleRate: 48000},
		},
		{
			name: "falls back to 22050",
			configs: []SupportedConfig{
				{Channels: 1, Format: Int32, MinRate: 22050, MaxRate: 22050},
			},
			target: 16000,
			want:   CaptureConfig{Channels: 1, Format: Int32, SampleRate: 22050},
		},
		{
			name: "more than two channels ignored",
			configs: []SupportedConfig{
				{Channels: 4, Format: Float32, MinRate: 16000, MaxRate: 48000},
				{Channels: 2, Format: Float32, MinRate: 44100, MaxRate: 44100},
			},
			target: 16000,
			want:   CaptureConfig{Channels: 2, Format: Float32, SampleRate: 44100},
		},
		{
			name: "nothing suitable",
			configs: []SupportedConfig{
				{Channels: 1, Format: Float32, MinRate: 96000, MaxRate: 192000},
			},
			target:  16000,
			wantErr: true,
		},
		{
			name:    "no configs",
			target:  16000,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectConfig(tt.configs, tt.target)
			if tt.wantErr {
				if !errors.Is(err, ErrNoSuitableConfig) {
					t.Fatalf("Expected ErrNoSuitableConfig, got %v", err)
				}
				var audioErr *Error
				if !errors.As(err, &audioErr) || audioErr.Kind != KindConfig {
					t.Errorf("Expected config error kind, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SelectConfig failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("SelectConfig = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCandidateRates(t *testing.T) {
	got := candidateRates(48000)
	want := []int{48000, 44100, 24000, 22050}

	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("rate %d: expected %d, got %d", i, want[i], got[i])
		}
	}

	if rates := candidateRates(16000); rates[0] != 16000 || len(rates) != 5 {
		t.Errorf("Expected 16000 first followed by fallbacks, got %v", rates)
	}
}
