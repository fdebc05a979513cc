package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/pflag"

	"github.com/m3rciful/quizbot/core/buildinfo"
	corecmd "github.com/m3rciful/quizbot/core/cmd"
	"github.com/m3rciful/quizbot/internal/app"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to the YAML config (default $CONFIG_PATH or config.yaml)")
	envFile := pflag.String("env-file", ".env", "dotenv file loaded before the config; missing files are ignored")
	version := pflag.BoolP("version", "v", false, "print the build version and exit")
	pflag.Parse()

	if *version {
		fmt.Println(buildinfo.String())
		return
	}

	err := corecmd.Run(corecmd.Options{
		ConfigPath:        *configPath,
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		EnvFiles:          []string{*envFile},
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return app.Load(path)
		},
		Bootstrap: app.Bootstrap,
	})
	if err != nil {
		log.Printf("quizbot: %v", err)
		os.Exit(1)
	}
}
