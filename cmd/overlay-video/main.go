// Command overlay-video renders an overlay script into a video with an alpha
// channel, suitable for compositing over footage in an editor or a second
// ffmpeg pass.
package main

import (
	"flag"
	"math"
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"overlayscript"
	"overlayscript/scene"
)

type arguments struct {
	ScriptFile string
	OutputFile string
	ConfigFile string

	Start     float64
	End       float64
	Framerate float64
	Bitrate   string
	Workers   int

	TileCacheDir string
	Verbose      bool
}

func parseArguments() *arguments {
	args := &arguments{}

	flag.StringVar(&args.ScriptFile, "script", "overlay.flt", "Path to the overlay script.")
	flag.StringVar(&args.OutputFile, "o", "overlay.mov", "Output video file name.")
	flag.StringVar(&args.ConfigFile, "config", "", "Optional config file with map provider settings.")
	flag.Float64Var(&args.Start, "start", 0, "Start timestamp in seconds.")
	flag.Float64Var(&args.End, "end", -1, "End timestamp in seconds. Defaults to the last key frame.")
	flag.Float64Var(&args.Framerate, "framerate", 30, "Video framerate.")
	flag.StringVar(&args.Bitrate, "bitrate", "5M", "Video bitrate (e.g., 5M).")
	flag.IntVar(&args.Workers, "workers", runtime.NumCPU(), "Number of parallel workers for frame generation.")
	flag.StringVar(&args.TileCacheDir, "tile-cache", overlayscript.DefaultTileCacheDir, "Directory for persisted map tiles.")
	flag.BoolVar(&args.Verbose, "v", false, "Verbose logging.")
	flag.Parse()

	return args
}

func setupLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).With().Timestamp().Logger()
}

// applyConfig overlays map provider settings from an optional config file
// onto the parsed scene, so that API keys need not live in scripts.
func applyConfig(s *scene.Scene, path string, log zerolog.Logger) error {
	v := viper.New()
	v.SetDefault("map.url_base", s.MapURLBase)
	v.SetDefault("map.api_key", s.MapAPIKey)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return err
		}
		log.Debug().Str("file", path).Msg("loaded config")
	}

	s.MapURLBase = v.GetString("map.url_base")
	s.MapAPIKey = v.GetString("map.api_key")
	return nil
}

// sceneEnd returns the time of the last key frame of any object.
func sceneEnd(s *scene.Scene) float64 {
	end := 0.0
	for _, obj := range s.Objects {
		if n := obj.FrameCount(); n > 0 {
			end = math.Max(end, obj.FrameTime(n-1))
		}
	}
	return end
}

func main() {
	args := parseArguments()
	log := setupLogger(args.Verbose)

	overlay, err := overlayscript.LoadScriptFile(args.ScriptFile)
	if err != nil {
		log.Fatal().Err(err).Str("script", args.ScriptFile).Msg("loading script failed")
	}
	s := overlay.Scene()

	if err := applyConfig(s, args.ConfigFile, log); err != nil {
		log.Fatal().Err(err).Msg("reading config failed")
	}

	if args.End < 0 {
		args.End = sceneEnd(s)
	}
	if args.End <= args.Start {
		log.Fatal().Float64("start", args.Start).Float64("end", args.End).
			Msg("empty time range")
	}

	log.Info().
		Int("width", s.VideoWidth).Int("height", s.VideoHeight).
		Float64("start", args.Start).Float64("end", args.End).
		Int("objects", len(s.Objects)).
		Msg("rendering overlay")

	if err := runVideoPipeline(s, args, log); err != nil {
		log.Fatal().Err(err).Msg("pipeline failed")
	}

	log.Info().Str("output", args.OutputFile).Msg("video saved")
}
