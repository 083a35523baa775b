// SPDX-License-Identifier: MIT
package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"fdaudio/cmd"
	"fdaudio/internal/audio"
	"fdaudio/internal/build"
	"fdaudio/internal/config"
	"fdaudio/internal/log"
	"fdaudio/internal/pipeline"
	"fdaudio/internal/transport"
	"fdaudio/internal/transport/udp"
	"fdaudio/internal/tui"
)

// main is the entry point for the full-duplex audio pipeline. The
// program flow follows the teacher's three-phase shape:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Configure runtime settings
//   - Initialize PortAudio
//   - Parse command line arguments
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Resolve devices and open capture/playback streams
//   - Start the orchestrator's processing goroutine
//   - Start recording if enabled
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop recording if active
//   - Clean up resources
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		log.Fatal(err)
	}

	// One thread dedicated to the processing goroutine, one for
	// everything else (signal handling, diagnostics transports).
	runtime.GOMAXPROCS(2)

	if err := audio.Initialize(); err != nil {
		log.Fatal(err)
	}
	defer audio.Terminate()

	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	cfg := opts.Cfg
	log.SetLevel(logLevelFromConfig(cfg))

	if opts.Command == "list" {
		if err := audio.ListDevices(); err != nil {
			log.Fatal(err)
		}
		return
	}

	if opts.Command == "devices" {
		chosen, err := tui.PickDevice()
		if err != nil {
			log.Fatal(err)
		}
		if chosen == nil {
			return
		}
		fmt.Printf("Selected device [%d] %s\n", chosen.ID, chosen.Name)
		return
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	inputDevice, err := audio.InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		log.Fatal(err)
	}
	outputDevice, err := audio.OutputDevice(cfg.Audio.OutputDevice)
	if err != nil {
		log.Fatal(err)
	}

	var dashSink *tui.ChannelSink
	if opts.Dashboard {
		dashSink = tui.NewChannelSink()
	}
	reporter, diagSink := newReporter(cfg, dashSink)
	orch := pipeline.New(reporter)

	capture, err := audio.NewPortAudioCapture(inputDevice, config.PipelineChannels, cfg.Audio.FramesPerBuffer,
		config.PipelineSampleRate, cfg.Audio.LowLatency)
	if err != nil {
		log.Fatal(err)
	}
	playback, err := audio.NewPortAudioPlayback(outputDevice, config.PipelineChannels, cfg.Audio.FramesPerBuffer,
		config.PipelineSampleRate, cfg.Audio.LowLatency, orch.PullTo)
	if err != nil {
		log.Fatal(err)
	}

	var captureStream pipeline.CaptureStream = capture
	var recorder *audio.Recorder
	if cfg.Recording.Enabled {
		recorder = audio.NewRecorder(config.PipelineChannels, int(config.PipelineSampleRate), cfg.Recording.BitDepth)
		if err := recorder.Start(cfg.Recording.OutputFile); err != nil {
			log.Fatal(err)
		}
		captureStream = &recordingCapture{CaptureStream: capture, recorder: recorder}
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	// CRITICAL: Start triggers PortAudio to begin driving the playback
	// callback, marking the start of the hot path.
	if !orch.Start(captureStream, playback) {
		log.Fatal("pipeline: failed to start capture/playback streams")
	}

	if dashSink != nil {
		// The dashboard owns the foreground terminal until the user
		// presses q/Ctrl+C, which bubbletea turns into a normal
		// Program.Run return; there is no separate signal wait.
		if err := tui.StartDashboard(dashSink.Chan()); err != nil {
			log.Errorf("main: dashboard exited with error: %v", err)
		}
	} else {
		fmt.Printf("%s running. Press Ctrl+C to stop.\n", build.GetBuildFlags().Name)
		<-done
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	orch.Stop()

	if recorder != nil {
		if err := recorder.Stop(); err != nil {
			log.Errorf("main: error stopping recorder: %v", err)
		} else {
			fmt.Printf("\nRecording saved to: %s\n", cfg.Recording.OutputFile)
		}
	}

	if closer, ok := diagSink.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Warnf("main: error closing diagnostics transport: %v", err)
		}
	}
}

// newReporter builds the diagnostics sink the config selects: UDP and/or
// WebSocket when enabled, plus dash (the terminal dashboard's sink) when
// non-nil, falling back to LoggingTransport when nothing else is
// configured so Reporter always has somewhere to send Stats. Multiple
// sinks combine via a small fan-out. It returns the sink alongside the
// Reporter so main can Close it on shutdown.
func newReporter(cfg *config.Config, dash *tui.ChannelSink) (*pipeline.Reporter, pipeline.StatsSink) {
	var sinks []pipeline.StatsSink

	if dash != nil {
		sinks = append(sinks, dash)
	}

	if cfg.Diagnostics.UDPEnabled {
		sender, err := udp.NewSender(cfg.Diagnostics.UDPTargetAddr)
		if err != nil {
			log.Errorf("main: udp diagnostics disabled, sender setup failed: %v", err)
		} else {
			pub, err := udp.NewStatsPublisher(sender)
			if err != nil {
				log.Errorf("main: udp diagnostics disabled: %v", err)
			} else {
				sinks = append(sinks, pub)
			}
		}
	}

	if cfg.Diagnostics.WebSocketEnabled {
		sinks = append(sinks, transport.NewWebSocketTransport(cfg.Diagnostics.WebSocketAddr))
	}

	var sink pipeline.StatsSink
	switch len(sinks) {
	case 0:
		sink = transport.NewLoggingTransport()
	case 1:
		sink = sinks[0]
	default:
		sink = fanoutSink(sinks)
	}

	return pipeline.NewReporter(sink), sink
}

// fanoutSink broadcasts one Stats record to every sink in ss, closing
// all of them on Close and logging (never failing) individual Send
// errors so one bad transport can't stop the others.
type fanoutSink []pipeline.StatsSink

func (f fanoutSink) Send(data any) error {
	for _, s := range f {
		if err := s.Send(data); err != nil {
			log.Warnf("main: diagnostics fan-out sink error: %v", err)
		}
	}
	return nil
}

func (f fanoutSink) Close() error {
	var firstErr error
	for _, s := range f {
		if closer, ok := s.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// recordingCapture tees every captured burst to a Recorder before
// handing it back to the pipeline, so the debug WAV file sees exactly
// the samples the Orchestrator consumed.
type recordingCapture struct {
	pipeline.CaptureStream
	recorder *audio.Recorder
}

func (r *recordingCapture) Read(dst []float32, frames int, timeout time.Duration) (int, error) {
	n, err := r.CaptureStream.Read(dst, frames, timeout)
	if err == nil && n > 0 {
		if werr := r.recorder.Write(dst[:n*r.CaptureStream.ChannelCount()]); werr != nil {
			log.Warnf("main: recorder write failed: %v", werr)
		}
	}
	return n, err
}

func logLevelFromConfig(cfg *config.Config) log.LogLevel {
	if cfg.Debug {
		return log.LevelDebug
	}
	if lvl, ok := log.ParseLevel(cfg.LogLevel); ok {
		return lvl
	}
	return log.LevelInfo
}
