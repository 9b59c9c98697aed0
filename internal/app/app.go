// Package app wires process-level concerns: CLI flags, config loading and
// structured logging, following go2rtc's internal/app bootstrap.
package app

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog/log"
)

var Version = "0.1.0"
var UserAgent = "birdbox-gateway/" + Version

var Info = map[string]any{
	"version": Version,
}

// Init parses CLI flags, loads YAML config and initializes logging. It must
// run before anything reads ConfigPath, Info or calls LoadConfig.
func Init() {
	var confs flagConfig
	var daemon bool
	var version bool

	flag.Var(&confs, "config", "gateway config (path to file or raw text), supports multiple")
	if runtime.GOOS != "windows" {
		flag.BoolVar(&daemon, "daemon", false, "Run program in background")
	}
	flag.BoolVar(&version, "version", false, "Print the version of the application and exit")
	flag.Parse()

	if version {
		printVersion()
		os.Exit(0)
	}

	if daemon {
		runDaemon()
	}

	initConfig(confs)
	initLogger()
	log.Logger = Logger

	platform := fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
	log.Info().Str("version", Version).Str("platform", platform).Msg("birdbox-gateway")
	log.Debug().Str("version", runtime.Version()).Msg("build")

	if ConfigPath != "" {
		log.Info().Str("path", ConfigPath).Msg("config")
	}
}

func printVersion() {
	vcsRevision := ""
	vcsTime := time.Now().Local()
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if len(setting.Value) > 7 {
					vcsRevision = setting.Value[:7]
				} else {
					vcsRevision = setting.Value
				}
				vcsRevision = "(" + vcsRevision + ")"
			case "vcs.time":
				if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					vcsTime = t.Local()
				}
			}
		}
	}
	fmt.Printf("birdbox-gateway version %s%s: %s %s/%s\n",
		Version, vcsRevision, vcsTime.String(), runtime.GOOS, runtime.GOARCH)
}

func runDaemon() {
	args := os.Args[1:]
	for i, arg := range args {
		if arg == "-daemon" {
			args[i] = ""
		}
	}
	cmd := exec.Command(os.Args[0], args...)
	if err := cmd.Start(); err != nil {
		log.Fatal().Err(err).Send()
	}
	fmt.Println("Running in daemon mode with PID:", cmd.Process.Pid)
	os.Exit(0)
}
