package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dkeye/Huddle/internal/adapters/channel"
	"github.com/dkeye/Huddle/internal/adapters/device"
	"github.com/dkeye/Huddle/internal/adapters/rtc"
	"github.com/dkeye/Huddle/internal/app/session"
	"github.com/dkeye/Huddle/internal/config"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/names"
	"github.com/dkeye/Huddle/internal/ui"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	flagName        string
	flagServer      string
	flagSTUN        []string
	flagTURN        string
	flagTURNUser    string
	flagTURNPass    string
	flagAudioDevice string
	flagVideoDevice string
	flagLogLevel    string
)

// flagKeys maps command-line flags onto client config keys.
var flagKeys = map[string]string{
	"server":       "server_url",
	"stun":         "stun_servers",
	"turn":         "turn_server",
	"turn-user":    "turn_user",
	"turn-pass":    "turn_pass",
	"audio-device": "audio_device",
	"video-device": "video_device",
	"log-level":    "log_level",
}

var joinCmd = &cobra.Command{
	Use:   "join <room-id>",
	Short: "Join a room",
	Long: `Join a room and stay in it until /leave or Ctrl+C.

Examples:
  huddle join standup
  huddle join standup --name Ada --video-device "USB Camera"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return joinRoom(cmd, domain.RoomID(args[0]))
	},
}

func init() {
	joinCmd.Flags().StringVarP(&flagName, "name", "n", "", "Display name (random when empty)")
	joinCmd.Flags().StringVar(&flagServer, "server", "", "Signaling server websocket url")
	joinCmd.Flags().StringSliceVarP(&flagSTUN, "stun", "s", nil, "STUN servers")
	joinCmd.Flags().StringVarP(&flagTURN, "turn", "t", "", "TURN server")
	joinCmd.Flags().StringVar(&flagTURNUser, "turn-user", "", "TURN username")
	joinCmd.Flags().StringVar(&flagTURNPass, "turn-pass", "", "TURN password")
	joinCmd.Flags().StringVar(&flagAudioDevice, "audio-device", "", "Microphone label, empty for none")
	joinCmd.Flags().StringVar(&flagVideoDevice, "video-device", "", "Camera label, empty for none")
	joinCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.AddCommand(joinCmd)
}

// overrides collects only the flags the user actually set.
func overrides(flags *pflag.FlagSet) map[string]any {
	out := make(map[string]any)
	flags.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			out[key] = sv.GetSlice()
			return
		}
		out[key] = f.Value.String()
	})
	return out
}

func setupLogging(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func joinRoom(cmd *cobra.Command, roomID domain.RoomID) error {
	cfg, err := config.LoadClient(overrides(cmd.Flags()))
	if err != nil {
		return err
	}
	setupLogging(cfg.LogLevel)

	name := flagName
	if name == "" {
		name = names.Random()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := ui.NewConsole(os.Stdout)
	ch := channel.New(channel.Config{
		URL:               cfg.ServerURL,
		ReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectDelay:    cfg.ReconnectDelay,
	})
	defer ch.Close()

	factory, err := rtc.NewFactory(rtc.ICEConfig{
		STUNServers: cfg.STUNServers,
		TURNServer:  cfg.TURNServer,
		TURNUser:    cfg.TURNUser,
		TURNPass:    cfg.TURNPass,
	})
	if err != nil {
		return err
	}

	var self domain.UserID
	sess, err := session.New(session.Config{
		RoomID:             roomID,
		DisplayName:        name,
		RequestTimeout:     cfg.RequestTimeout,
		SignalBufferTTL:    cfg.SignalBufferTTL,
		NegotiationTimeout: cfg.NegotiationTimeout,
	}, session.Deps{
		Channel:     ch,
		Devices:     device.NewSynthetic(device.Config{AudioDevice: cfg.AudioDevice, VideoDevice: cfg.VideoDevice}),
		Connections: factory,
		Notifier:    console,
		Observer: func(c session.Change) {
			if c.Kind == session.ChangeMessage {
				console.Message(c.Message, self)
			}
		},
	})
	if err != nil {
		return err
	}
	self = sess.UserID()

	if err := ch.Connect(ctx); err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.ServerURL, err)
	}
	if err := sess.Start(ctx); err != nil {
		return err
	}
	console.Println(ui.Banner(string(roomID), name))

	exit := runInput(ctx, sess, console, os.Stdin)
	sess.Leave(exit)
	if exit == session.ExitNormal {
		console.Success("Left the room")
	}
	return nil
}
