package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/yok-tottii/EzS2T-Realtime/internal/audio"
	"github.com/yok-tottii/EzS2T-Realtime/internal/logger"
)

func newDevicesCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio input devices",
		Long:  "List audio input devices. Use the ID as audio_device_id in the config file; -1 selects the system default.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := flags.load()
			if err != nil {
				return err
			}

			log := logger.NewConsole(cmd.ErrOrStderr(), e.level)
			capture, err := audio.NewPortAudioCapture(log.With("audio"), nil)
			if err != nil {
				return err
			}
			defer capture.Close()

			devices, err := capture.ListDevices()
			if err != nil {
				return fmt.Errorf("failed to list audio devices: %w", err)
			}

			printDevices(cmd.OutOrStdout(), devices, e.cfg.AudioDeviceID)
			return nil
		},
	}
}

// printDevices writes one line per device, marking the system default with
// "*" and the configured device with ">".
func printDevices(w io.Writer, devices []audio.Device, selected int) {
	if len(devices) == 0 {
		fmt.Fprintln(w, "No input devices found")
		return
	}

	for _, d := range devices {
		mark := " "
		if d.ID == selected {
			mark = ">"
		}
		def := " "
		if d.IsDefault {
			def = "*"
		}
		fmt.Fprintf(w, "%s%s %3d  %-40s %d ch  %.0f Hz\n", mark, def, d.ID, d.Name, d.Channels, d.SampleRate)
	}
}
