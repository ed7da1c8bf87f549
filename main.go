// SPDX-License-Identifier: MIT
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tempo/cmd"
	"tempo/internal/config"
	applog "tempo/internal/log"
	"tempo/internal/record"
	"tempo/internal/server"
	"tempo/internal/source"
	"tempo/internal/tempo"
	"tempo/internal/transport/udp"
)

// main runs in three phases: startup (parse config, open the source and
// consumers), the concurrent phase (pump samples through the engine while
// the servers publish state), and shutdown (close everything in reverse
// order on signal or end of input).
func main() {
	cfg, command, err := cmd.ParseArgs()
	if err != nil {
		applog.Fatalf("%v", err)
	}
	if cfg == nil {
		// Help or version output already printed.
		return
	}

	if level, ok := applog.ParseLevel(cfg.LogLevel); ok {
		applog.SetLevel(level)
	}
	if cfg.Debug {
		applog.SetLevel(applog.LevelDebug)
	}

	if command == "list" {
		if err := listDevices(); err != nil {
			applog.Fatalf("%v", err)
		}
		return
	}

	if err := run(cfg); err != nil {
		applog.Fatalf("%v", err)
	}
}

func listDevices() error {
	if err := source.Initialize(); err != nil {
		return err
	}
	defer source.Terminate()

	devices, err := source.ListDevices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("No capture devices found.")
		return nil
	}
	for _, d := range devices {
		fmt.Printf("[%d] %s (%d in, %.0f Hz)\n",
			d.ID, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
	}
	return nil
}

func run(cfg *config.Config) error {
	// ==================== STARTUP ====================

	if cfg.Source.Kind == "portaudio" {
		if err := source.Initialize(); err != nil {
			return err
		}
		defer source.Terminate()
	}

	src, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return err
	}
	engine, err := tempo.New(engineCfg)
	if err != nil {
		return err
	}

	var recorder *record.Recorder
	if cfg.Recording.Enabled {
		filename := cfg.Recording.OutputFile
		if filename == "" {
			filename = "recording-" + time.Now().UTC().Format("2006-01-02-150405") + ".wav"
		}
		recorder, err = record.NewRecorder(filename, cfg.Source.SampleRate)
		if err != nil {
			return err
		}
		defer recorder.Close()
	}

	if cfg.Server.Enabled {
		srv := server.New(cfg.Server.Addr, cfg.Server.PushInterval, engine, engineCfg)
		srv.Start()
		defer srv.Close()
	}

	if cfg.Server.UDPEnabled {
		sender, err := udp.NewSender(cfg.Server.UDPTarget)
		if err != nil {
			return err
		}
		defer sender.Close()

		publisher, err := udp.NewPublisher(cfg.Server.UDPInterval, sender, engine)
		if err != nil {
			return err
		}
		publisher.Start()
		defer publisher.Stop()
	}

	// ==================== CONCURRENT ====================

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	pumpErr := make(chan error, 1)
	go func() {
		pumpErr <- source.Pump(done, src, cfg.Source.SampleRate, func(v float64, ts uint64) {
			if recorder != nil {
				recorder.WriteSample(v)
			}
			engine.IngestSample(v, ts)
		})
	}()

	applog.Infof("Engine: Running (source %s, %g Hz, FFT %d, %g-%g BPM)",
		cfg.Source.Kind, cfg.Source.SampleRate, engineCfg.FFTSize, engineCfg.MinBPM, engineCfg.MaxBPM)

	select {
	case sig := <-signals:
		applog.Infof("Engine: Received %s, shutting down", sig)
		close(done)
		<-pumpErr
	case err := <-pumpErr:
		if err != nil {
			return fmt.Errorf("source failed: %w", err)
		}
		applog.Infof("Engine: Source exhausted")
	}

	// ==================== SHUTDOWN ====================

	state := engine.GetState()
	applog.Infof("Engine: Final state %.1f BPM (confidence %.2f, status %s)",
		state.BPM, state.Confidence, state.Status)
	return nil
}

// openSource builds the configured sample provider. For WAV replay the
// file's own sample rate replaces the configured one so the detector's
// frequency mapping stays correct.
func openSource(cfg *config.Config) (source.Source, error) {
	switch cfg.Source.Kind {
	case "portaudio":
		return source.NewPortAudio(cfg.Source.Device, cfg.Source.SampleRate,
			cfg.Source.FramesPerBuffer, cfg.Source.LowLatency)
	case "malgo":
		return source.NewMalgo("", cfg.Source.SampleRate, cfg.Source.FramesPerBuffer)
	case "wav":
		src, err := source.OpenWAV(cfg.Source.WAVPath)
		if err != nil {
			return nil, err
		}
		cfg.Source.SampleRate = src.SampleRate()
		return src, nil
	case "synth":
		return source.NewSynth(cfg.Source.SampleRate, cfg.Source.SynthFreq,
			cfg.Source.SynthBPM, 0), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}
