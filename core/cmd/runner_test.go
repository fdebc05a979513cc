package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	coreconfig "github.com/m3rciful/quizbot/core/config"
	coretelegram "github.com/m3rciful/quizbot/core/telegram"
)

type fakeConfig struct{ core *coreconfig.Config }

func (f fakeConfig) CoreConfig() *coreconfig.Config { return f.core }

type fakeApp struct{}

func (fakeApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{}, nil
}

func TestRunWiresHooks(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envFile, []byte("QUIZBOT_RUNNER_TEST=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("QUIZBOT_RUNNER_TEST", "")
	os.Unsetenv("QUIZBOT_RUNNER_TEST")

	var loadedPath string
	var started, stopped bool
	err := Run(Options{
		ConfigPath:        "custom.yaml",
		DefaultConfigPath: "config.yaml",
		EnvFiles:          []string{filepath.Join(t.TempDir(), "missing.env"), envFile},
		LoadConfig: func(path string) (ConfigCarrier, error) {
			loadedPath = path
			return fakeConfig{core: &coreconfig.Config{}}, nil
		},
		Bootstrap:      func(ConfigCarrier) (TelegramApp, error) { return fakeApp{}, nil },
		ShutdownLogger: func() error { return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			if err := opts.OnStart(ctx, coretelegram.Runtime{}); err != nil {
				return err
			}
			started = true
			stopped = opts.OnStop(ctx, coretelegram.Runtime{}) == nil
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if loadedPath != "custom.yaml" {
		t.Fatalf("config path = %s", loadedPath)
	}
	if !started || !stopped {
		t.Fatalf("hooks not called: started=%v stopped=%v", started, stopped)
	}
	if got := os.Getenv("QUIZBOT_RUNNER_TEST"); got != "from-file" {
		t.Fatalf("env not loaded: %q", got)
	}
}

func TestRunRequiresLoaders(t *testing.T) {
	if err := Run(Options{}); err == nil {
		t.Fatal("expected error without LoadConfig")
	}
}

func TestConfigPathPrecedence(t *testing.T) {
	t.Setenv("QUIZBOT_CONFIG", "env.yaml")
	opts := Options{ConfigEnvVar: "QUIZBOT_CONFIG", DefaultConfigPath: "config.yaml"}
	if got := opts.configPath(); got != "env.yaml" {
		t.Fatalf("env path = %s", got)
	}
	opts.ConfigPath = "flag.yaml"
	if got := opts.configPath(); got != "flag.yaml" {
		t.Fatalf("flag path = %s", got)
	}
	t.Setenv("QUIZBOT_CONFIG", "")
	opts.ConfigPath = ""
	if got := opts.configPath(); got != "config.yaml" {
		t.Fatalf("default path = %s", got)
	}
}

func TestLoadEnvFilesSkipsBlankValues(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	body := "QUIZBOT_BLANK_ID=\nQUIZBOT_SET_ID=5\nQUIZBOT_KEPT_ID=9\n"
	if err := os.WriteFile(envFile, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"QUIZBOT_BLANK_ID", "QUIZBOT_SET_ID"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Setenv("QUIZBOT_KEPT_ID", "1")

	if err := loadEnvFiles([]string{envFile}); err != nil {
		t.Fatalf("loadEnvFiles: %v", err)
	}
	if _, set := os.LookupEnv("QUIZBOT_BLANK_ID"); set {
		t.Fatal("blank value must not be exported")
	}
	if got := os.Getenv("QUIZBOT_SET_ID"); got != "5" {
		t.Fatalf("QUIZBOT_SET_ID = %q", got)
	}
	if got := os.Getenv("QUIZBOT_KEPT_ID"); got != "1" {
		t.Fatalf("existing env overridden: %q", got)
	}
}
