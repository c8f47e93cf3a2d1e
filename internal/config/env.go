package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"homeworkbot/internal/failure"
)

const (
	EnvPracticumToken = "PRACTICUM_TOKEN"
	EnvTelegramToken  = "TELEGRAM_TOKEN"
	EnvTelegramChatID = "TELEGRAM_CHAT_ID"
)

// Credentials are the three secrets the process cannot run without.
// ChatID is passed to the Bot API as is: a numeric id or an @channel username.
type Credentials struct {
	PracticumToken string
	TelegramToken  string
	ChatID         string
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadCredentials reads credentials from the process environment, falling back to
// values in envFile. Real environment variables always win over the file, and a
// missing envFile is not an error.
func LoadCredentials(envFile string) (Credentials, error) {
	dotenv := map[string]string{}
	if strings.TrimSpace(envFile) != "" {
		m, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			dotenv = m
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Credentials{}, fmt.Errorf("read %s: %w", envFile, err)
		}
	}
	return CredentialsFrom(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	})
}

// CredentialsFrom resolves credentials through lookup.
// Every missing or blank variable is reported in a single KindConfig error.
func CredentialsFrom(lookup LookupFunc) (Credentials, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	c := Credentials{
		PracticumToken: get(EnvPracticumToken),
		TelegramToken:  get(EnvTelegramToken),
		ChatID:         get(EnvTelegramChatID),
	}

	var missing []string
	if c.PracticumToken == "" {
		missing = append(missing, EnvPracticumToken)
	}
	if c.TelegramToken == "" {
		missing = append(missing, EnvTelegramToken)
	}
	if c.ChatID == "" {
		missing = append(missing, EnvTelegramChatID)
	}
	if len(missing) > 0 {
		return Credentials{}, failure.Config(missing...)
	}
	return c, nil
}
