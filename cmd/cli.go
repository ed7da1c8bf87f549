// SPDX-License-Identifier: MIT
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"tempo/internal/build"
	"tempo/internal/config"
)

// ParseArgs builds the application configuration from the config file and
// command line. Flags override file values only when explicitly set. The
// returned command is "" for a normal run or "list" for device listing.
func ParseArgs() (*config.Config, string, error) {
	buildInfo := build.GetInfo()

	var (
		cfg     *config.Config
		command string

		configPath string

		sourceKind      string
		device          int
		sampleRate      float64
		framesPerBuffer int
		lowLatency      bool
		wavPath         string
		synthBPM        float64

		fftSize   int
		minBPM    float64
		maxBPM    float64
		threshold float64
		window    string
		overlap   float64
		bassMin   float64
		bassMax   float64

		listen    string
		noServer  bool
		udpTarget string

		record  bool
		output  string
		verbose bool
	)

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         "Real-time beat detection and BPM estimation",
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
		},
		Run: func(cmd *cobra.Command, args []string) {},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available capture devices",
		Run: func(cmd *cobra.Command, args []string) {
			command = "list"
		},
	}
	rootCmd.AddCommand(listCmd)

	flags := rootCmd.PersistentFlags()

	flags.StringVar(&configPath, "config", "", "Path to YAML config file (default config.yaml if present)")

	// Source
	flags.StringVar(&sourceKind, "source", "", "Audio source: portaudio, malgo, wav or synth")
	flags.IntVarP(&device, "device", "d", -1, "Capture device index, -1 for default. Use 'list' to enumerate.")
	flags.Float64VarP(&sampleRate, "sample-rate", "s", 8000, "Sample rate in Hz")
	flags.IntVarP(&framesPerBuffer, "frames-per-buffer", "b", 512, "Capture chunk size (affects latency)")
	flags.BoolVarP(&lowLatency, "low-latency", "l", false, "Request low-latency capture settings")
	flags.StringVar(&wavPath, "wav", "", "Replay this WAV file instead of capturing (implies --source wav)")
	flags.Float64Var(&synthBPM, "synth-bpm", 120, "Click-track tempo for the synth source")

	// Detector
	flags.IntVar(&fftSize, "fft-size", 512, "Analysis window size in samples (power of two)")
	flags.Float64Var(&minBPM, "min-bpm", 60, "Lower bound of the reportable tempo range")
	flags.Float64Var(&maxBPM, "max-bpm", 200, "Upper bound of the reportable tempo range")
	flags.Float64Var(&threshold, "threshold", 1.5, "Beat detection threshold over average band energy")
	flags.StringVar(&window, "window", "hamming", "FFT window: hamming or blackmanharris")
	flags.Float64Var(&overlap, "overlap", 0.5, "Analysis window overlap ratio [0, 1)")
	flags.Float64Var(&bassMin, "bass-min", 40, "Lower edge of the analyzed band in Hz")
	flags.Float64Var(&bassMax, "bass-max", 200, "Upper edge of the analyzed band in Hz")

	// Server
	flags.StringVar(&listen, "listen", ":8080", "HTTP/WebSocket listen address for the status API")
	flags.BoolVar(&noServer, "no-server", false, "Disable the status API server")
	flags.StringVar(&udpTarget, "udp-target", "", "Publish binary state packets to this host:port")

	// Recording
	flags.BoolVarP(&record, "record", "r", false, "Record the raw input stream to a WAV file")
	flags.StringVarP(&output, "output", "o", "", "Recording file name (default recording-<timestamp>.wav)")

	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		if flags.Changed("source") {
			cfg.Source.Kind = sourceKind
		}
		if flags.Changed("device") {
			cfg.Source.Device = device
		}
		if flags.Changed("sample-rate") {
			cfg.Source.SampleRate = sampleRate
		}
		if flags.Changed("frames-per-buffer") {
			cfg.Source.FramesPerBuffer = framesPerBuffer
		}
		if flags.Changed("low-latency") {
			cfg.Source.LowLatency = lowLatency
		}
		if flags.Changed("wav") {
			cfg.Source.WAVPath = wavPath
			cfg.Source.Kind = "wav"
		}
		if flags.Changed("synth-bpm") {
			cfg.Source.SynthBPM = synthBPM
		}

		if flags.Changed("fft-size") {
			cfg.Detector.FFTSize = fftSize
		}
		if flags.Changed("min-bpm") {
			cfg.Detector.MinBPM = minBPM
		}
		if flags.Changed("max-bpm") {
			cfg.Detector.MaxBPM = maxBPM
		}
		if flags.Changed("threshold") {
			cfg.Detector.Threshold = threshold
		}
		if flags.Changed("window") {
			cfg.Detector.Window = window
		}
		if flags.Changed("overlap") {
			cfg.Detector.OverlapRatio = overlap
		}
		if flags.Changed("bass-min") {
			cfg.Detector.BassMin = bassMin
		}
		if flags.Changed("bass-max") {
			cfg.Detector.BassMax = bassMax
		}

		if flags.Changed("listen") {
			cfg.Server.Addr = listen
		}
		if flags.Changed("no-server") {
			cfg.Server.Enabled = !noServer
		}
		if flags.Changed("udp-target") {
			cfg.Server.UDPTarget = udpTarget
			cfg.Server.UDPEnabled = udpTarget != ""
		}

		if flags.Changed("record") {
			cfg.Recording.Enabled = record
		}
		if flags.Changed("output") {
			cfg.Recording.OutputFile = output
		}

		if flags.Changed("verbose") && verbose {
			cfg.Debug = true
			cfg.LogLevel = "debug"
		}

		return cfg.Validate()
	}

	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return nil, "", err
	}
	return cfg, command, nil
}
