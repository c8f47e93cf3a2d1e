package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"homeworkbot/internal/failure"
)

func lookupFrom(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestCredentialsFromRequiresAllThree(t *testing.T) {
	full := map[string]string{
		EnvPracticumToken: "p-token",
		EnvTelegramToken:  "t-token",
		EnvTelegramChatID: "12345",
	}
	for _, key := range []string{EnvPracticumToken, EnvTelegramToken, EnvTelegramChatID} {
		for _, variant := range []string{"missing", "empty", "blank"} {
			key, variant := key, variant
			t.Run(key+"/"+variant, func(t *testing.T) {
				env := map[string]string{}
				for k, v := range full {
					env[k] = v
				}
				switch variant {
				case "missing":
					delete(env, key)
				case "empty":
					env[key] = ""
				case "blank":
					env[key] = "   "
				}
				_, err := CredentialsFrom(lookupFrom(env))
				if err == nil {
					t.Fatalf("expected configuration error")
				}
				if failure.KindOf(err) != failure.KindConfig {
					t.Fatalf("kind = %v, want config", failure.KindOf(err))
				}
				if !strings.Contains(err.Error(), key) {
					t.Fatalf("error %q does not name %s", err, key)
				}
			})
		}
	}

	c, err := CredentialsFrom(lookupFrom(full))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.PracticumToken != "p-token" || c.TelegramToken != "t-token" || c.ChatID != "12345" {
		t.Fatalf("unexpected credentials: %+v", c)
	}
}

func TestCredentialsFromNamesEveryMissingVar(t *testing.T) {
	_, err := CredentialsFrom(lookupFrom(map[string]string{EnvTelegramToken: "x"}))
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, EnvPracticumToken) || !strings.Contains(msg, EnvTelegramChatID) {
		t.Fatalf("error %q should list both missing vars", msg)
	}
}

func TestCredentialsKeepChatIDVerbatim(t *testing.T) {
	for _, chat := range []string{"@channel", "-1001234567890", "42"} {
		c, err := CredentialsFrom(lookupFrom(map[string]string{
			EnvPracticumToken: "p",
			EnvTelegramToken:  "t",
			EnvTelegramChatID: "  " + chat + " ",
		}))
		if err != nil {
			t.Fatalf("chat %q: unexpected error %v", chat, err)
		}
		if c.ChatID != chat {
			t.Fatalf("ChatID = %q, want %q", c.ChatID, chat)
		}
	}
}

func TestLoadCredentialsDotenvDoesNotOverrideEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "PRACTICUM_TOKEN=from-file\nTELEGRAM_TOKEN=file-bot\nTELEGRAM_CHAT_ID=777\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(EnvPracticumToken, "from-env")
	// Registered with t.Setenv so they are restored, then removed for this test.
	t.Setenv(EnvTelegramToken, "")
	t.Setenv(EnvTelegramChatID, "")
	_ = os.Unsetenv(EnvTelegramToken)
	_ = os.Unsetenv(EnvTelegramChatID)

	c, err := LoadCredentials(envFile)
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if c.PracticumToken != "from-env" {
		t.Fatalf("env must win over .env, got %q", c.PracticumToken)
	}
	if c.TelegramToken != "file-bot" || c.ChatID != "777" {
		t.Fatalf("expected .env fallback values, got %+v", c)
	}
}

func TestLoadCredentialsMissingDotenvIsFine(t *testing.T) {
	t.Setenv(EnvPracticumToken, "p")
	t.Setenv(EnvTelegramToken, "t")
	t.Setenv(EnvTelegramChatID, "-100200")
	c, err := LoadCredentials(filepath.Join(t.TempDir(), "absent.env"))
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if c.ChatID != "-100200" {
		t.Fatalf("ChatID = %q", c.ChatID)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestManagerParseYAMLKeepsDefaults(t *testing.T) {
	p := writeFile(t, "bot.yaml", "poll:\n  every: \"5m\"\nlogging:\n  level: info\n")
	cfg, err := NewManager(p).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Poll.Every != "5m" || cfg.Logging.Level != "info" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.API.Endpoint != DefaultEndpoint || cfg.Notifier.RetryMax != 2 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if !cfg.Logging.Console {
		t.Fatalf("omitted logging.console should keep default true")
	}
}

func TestManagerParseRejectsUnknownAndInvalid(t *testing.T) {
	tests := map[string]string{
		"unknown key":      "poll:\n  every: 5m\n  jitter: 1s\n",
		"bad duration":     "api:\n  timeout: soon\n",
		"bad driver":       "storage:\n  driver: redis\n",
		"negative retries": "notifier:\n  retry_max: -1\n",
	}
	for name, content := range tests {
		content := content
		t.Run(name, func(t *testing.T) {
			if _, err := NewManager(writeFile(t, "bot.yaml", content)).Parse(); err == nil {
				t.Fatalf("expected error for %q", content)
			}
		})
	}
}

func TestManagerEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := NewManager("").Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Poll.Every != DefaultRetryEvery {
		t.Fatalf("Poll.Every = %q", cfg.Poll.Every)
	}
}

func TestManagerLoadRunsValidator(t *testing.T) {
	p := writeFile(t, "bot.yaml", "poll:\n  every: 5m\n")
	m := NewManager(p)
	if m.Path() != p {
		t.Fatalf("Path() = %q, want %q", m.Path(), p)
	}
	rejected := errors.New("rejected")
	m.SetValidator(func(_ context.Context, cfg *Config) error {
		if cfg.Poll.Every == "5m" {
			return rejected
		}
		return nil
	})
	if _, err := m.Load(); !errors.Is(err, rejected) {
		t.Fatalf("Load err = %v, want validator error", err)
	}
	if m.Get() != nil {
		t.Fatalf("rejected config must not be committed")
	}
}

func TestManagerReloadPublishesOnlyChanges(t *testing.T) {
	p := writeFile(t, "bot.json", `{"poll":{"every":"1m"}}`)
	m := NewManager(p)
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx := context.Background()
	if m.reload(ctx) {
		t.Fatalf("unchanged file must not publish")
	}

	if err := os.WriteFile(p, []byte(`{"poll":{"every":"2m"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	rejected := true
	m.SetValidator(func(context.Context, *Config) error {
		if rejected {
			return os.ErrInvalid
		}
		return nil
	})
	if m.reload(ctx) {
		t.Fatalf("rejected config must not publish")
	}
	rejected = false
	if !m.reload(ctx) {
		t.Fatalf("expected publish")
	}
	got := <-ch
	if got.Poll.Every != "2m" || m.Get().Poll.Every != "2m" {
		t.Fatalf("unexpected published config: %+v", got.Poll)
	}
}

func TestSummarizeChange(t *testing.T) {
	a := Default()
	b := Default()
	b.Poll.Every = "1h"
	b.Logging.Level = "warn"
	changed, fields := SummarizeChange(a, b)
	if strings.Join(changed, ",") != "poll,logging" {
		t.Fatalf("changed = %v", changed)
	}
	if len(fields) == 0 {
		t.Fatalf("expected fields")
	}
}
