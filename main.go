// SPDX-License-Identifier: MIT
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"microfeatures/cmd"
	"microfeatures/internal/audio"
	"microfeatures/internal/config"
	"microfeatures/internal/export"
	"microfeatures/internal/log"
	"microfeatures/internal/transport"
	"microfeatures/internal/transport/udp"
	"microfeatures/internal/tui"
	"microfeatures/internal/wavio"
	"microfeatures/pkg/build"
	"microfeatures/pkg/frontend"
)

// main is the entry point. The program flow has three phases:
//
// 1. Startup: build information, argument and config parsing, logging.
// 2. Run: one command. Only listen and list touch PortAudio.
// 3. Shutdown: signals or a duration end capture; resources close in
//    reverse order.
func main() {
	if err := build.Initialize(); err != nil {
		log.Debugf("development build: %v", err)
	}

	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	if opts.Command == "" {
		return // help or --version was printed
	}

	level, _ := log.ParseLevel(opts.Config.LogLevel)
	log.SetLevel(level)

	if err := run(opts); err != nil {
		log.Fatalf("%s: %v", opts.Command, err)
	}
}

func run(opts *cmd.Options) error {
	switch opts.Command {
	case cmd.CommandExtract:
		return extract(opts)
	case cmd.CommandListen:
		return listen(opts)
	case cmd.CommandList:
		return list(opts)
	case cmd.CommandConfig:
		out, err := opts.Config.Marshal()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	case cmd.CommandVersion:
		fmt.Println(build.GetBuildFlags())
		return nil
	default:
		return fmt.Errorf("unknown command '%s'", opts.Command)
	}
}

func extract(opts *cmd.Options) error {
	cfg := opts.Config
	clip, err := wavio.ReadFile(opts.Input, cfg.Frontend.SampleRate, cfg.Export.ResampleQuality)
	if err != nil {
		return err
	}
	if clip.Resampled() || clip.SourceChannels != 1 {
		log.Infof("converted %s: %d Hz x%d -> %d Hz mono", opts.Input, clip.SourceRate, clip.SourceChannels, clip.SampleRate)
	}

	fe, err := frontend.New(cfg.Frontend)
	if err != nil {
		return err
	}
	defer fe.Close()

	var out io.Writer = os.Stdout
	if opts.Output != "-" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	bw := bufio.NewWriter(out)

	w, err := export.NewWriter(cfg.Export.Format, bw)
	if err != nil {
		return err
	}
	summary, err := export.Extract(fe, clip.Samples, w, cfg.Export.Raw)
	if err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}

	log.Infof("%s: %d frames x %d channels from %d chunks (%s)",
		opts.Input, summary.Frames, fe.NumChannels(), summary.Chunks, cfg.Export.Format)
	return nil
}

func list(opts *cmd.Options) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	if !opts.Interactive {
		return audio.ListDevices(os.Stdout)
	}
	sel, err := tui.PickDevice(audio.HostDevices)
	if errors.Is(err, tui.ErrCancelled) {
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("Selected device %d (%s). Use: %s listen -d %d\n",
		sel.DeviceID, sel.Name, build.GetBuildFlags().Name, sel.DeviceID)
	return nil
}

// buildTransports starts every enabled transport. The caller closes the result.
func buildTransports(cfg *config.Config) (transport.Multi, error) {
	var ts transport.Multi
	tc := cfg.Transport

	if tc.LogEnabled {
		ts = append(ts, transport.NewLoggingTransport())
	}
	if tc.UDPEnabled {
		sender, err := udp.NewUDPSender(tc.UDPTargetAddress)
		if err != nil {
			ts.Close()
			return nil, err
		}
		pub, err := udp.NewUDPPublisher(tc.UDPSendInterval, sender)
		if err != nil {
			sender.Close()
			ts.Close()
			return nil, err
		}
		pub.Start()
		ts = append(ts, pub)
	}
	if tc.WSEnabled {
		ws, err := transport.NewWebSocketTransport(tc.WSAddress, tc.WSPath, tc.WSEncoding)
		if err != nil {
			ts.Close()
			return nil, err
		}
		if err := ws.Start(); err != nil {
			ws.Close()
			ts.Close()
			return nil, err
		}
		ts = append(ts, ws)
	}
	return ts, nil
}

func listen(opts *cmd.Options) error {
	cfg := opts.Config

	// One thread for the audio callback, one for everything else.
	runtime.GOMAXPROCS(2)

	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	if opts.Pick {
		sel, err := tui.PickDevice(audio.HostDevices)
		if err != nil {
			return err
		}
		cfg.Capture.InputDevice = sel.DeviceID
		cfg.Capture.LowLatency = sel.LowLatency
	}

	fe, err := frontend.New(cfg.Frontend)
	if err != nil {
		return err
	}
	defer fe.Close()

	transports, err := buildTransports(cfg)
	if err != nil {
		return err
	}
	defer transports.Close()

	var sink transport.Transport
	if len(transports) > 0 {
		sink = transports
	} else if !cfg.Capture.TUI {
		log.Warnf("no transport enabled; features are computed but not published")
	}

	engine, err := audio.NewEngine(cfg, fe, sink)
	if err != nil {
		return err
	}
	defer engine.Close()

	var monitor <-chan transport.FeatureFrame
	if cfg.Capture.TUI {
		monitor = engine.Monitor()
	}

	if err := engine.StartInputStream(); err != nil {
		return err
	}

	if cfg.Recording.Enabled {
		path, err := audio.RecordingPath(cfg.Recording.OutputDir, time.Now())
		if err != nil {
			return err
		}
		if err := engine.StartRecording(path); err != nil {
			return err
		}
		defer func() {
			// The callback must be gone before the encoder closes.
			if err := engine.StopInputStream(); err != nil {
				log.Errorf("error stopping input stream: %v", err)
			}
			if err := engine.StopRecording(); err != nil {
				log.Errorf("error stopping recording: %v", err)
			}
			fmt.Printf("\nRecording saved to: %s\n", path)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	if monitor != nil {
		return tui.RunMonitor(ctx, monitor, engine.Stats, cfg.Frontend.SampleRate)
	}

	log.Infof("listening; press Ctrl+C to stop")
	<-ctx.Done()
	return nil
}
