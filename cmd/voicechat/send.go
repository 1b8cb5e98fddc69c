package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/OmarFaruqJibon/NexoVoice-AI/config"
	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/application"
	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/domain"
	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/infra/audio"
	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/infra/backend"
	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/infra/console"
)

var sendMIMETypes = map[string]string{
	".wav":  "audio/wav",
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
	".mp3":  "audio/mpeg",
}

func newSendCmd(configPath *string) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "send <audio-file>",
		Short: "Upload a recorded clip once and save the spoken reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *configPath)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.Log)

			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading clip: %w", err)
			}

			mimeType, ok := sendMIMETypes[filepath.Ext(path)]
			if !ok {
				mimeType = "application/octet-stream"
			}
			clip := domain.Clip{
				Data:     data,
				MIMEType: mimeType,
				Filename: cfg.Capture.Filename + application.FileExtension(mimeType),
			}
			if len(clip.Data) == 0 {
				return domain.ErrEmptyCapture
			}

			client := backend.NewClient(cfg.Backend.URL, cfg.Backend.FieldName, config.Duration(cfg.Backend.Timeout), logger)
			reply, err := client.Upload(cmd.Context(), clip)
			if err != nil {
				return fmt.Errorf("%s: %w", domain.UserMessage(err), err)
			}

			if err := os.WriteFile(output, reply.Data, 0644); err != nil {
				return fmt.Errorf("writing reply: %w", err)
			}

			length := "unknown length"
			if s, f, err := audio.Decode(reply.Data, reply.ContentType); err == nil {
				length = console.FormatTime(f.SampleRate.D(s.Len()))
				s.Close()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reply saved to %s (%s, %d bytes)\n", output, length, len(reply.Data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "reply.wav", "where to write the reply audio")

	return cmd
}
