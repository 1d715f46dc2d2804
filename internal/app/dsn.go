package app

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// dsnSummary is the loggable part of a database DSN.
type dsnSummary struct {
	Driver      string
	Host        string
	Port        int
	User        string
	Name        string
	SSLMode     string
	Path        string
	PasswordSet bool
}

// String renders the summary without credentials.
func (s dsnSummary) String() string {
	switch s.Driver {
	case "sqlite":
		return "sqlite path=" + s.Path
	case "postgres":
		return fmt.Sprintf("postgres host=%s port=%d user=%s db=%s sslmode=%s password_set=%t",
			s.Host, s.Port, s.User, s.Name, s.SSLMode, s.PasswordSet)
	default:
		return "memory"
	}
}

func summarizeDSN(dsn string) (dsnSummary, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return dsnSummary{}, nil
	}

	lowered := strings.ToLower(trimmed)
	if strings.HasPrefix(lowered, "file:") {
		pathPart := trimmed[len("file:"):]
		pathPart, _, _ = strings.Cut(pathPart, "?")
		return dsnSummary{
			Driver: "sqlite",
			Path:   strings.TrimSpace(pathPart),
		}, nil
	}

	u, errParse := url.Parse(trimmed)
	if errParse != nil {
		return dsnSummary{}, fmt.Errorf("parse dsn: %w", errParse)
	}

	switch strings.ToLower(strings.TrimSpace(u.Scheme)) {
	case "postgres", "postgresql":
		port := 5432
		if rawPort := strings.TrimSpace(u.Port()); rawPort != "" {
			parsedPort, errPort := strconv.Atoi(rawPort)
			if errPort != nil {
				return dsnSummary{}, fmt.Errorf("parse port: %w", errPort)
			}
			port = parsedPort
		}

		username := ""
		passwordSet := false
		if u.User != nil {
			username = strings.TrimSpace(u.User.Username())
			_, passwordSet = u.User.Password()
		}

		sslMode := strings.TrimSpace(u.Query().Get("sslmode"))
		if sslMode == "" {
			sslMode = "disable"
		}

		return dsnSummary{
			Driver:      "postgres",
			Host:        strings.TrimSpace(u.Hostname()),
			Port:        port,
			User:        username,
			Name:        strings.TrimSpace(strings.TrimPrefix(u.Path, "/")),
			SSLMode:     sslMode,
			PasswordSet: passwordSet,
		}, nil
	default:
		return dsnSummary{}, fmt.Errorf("unsupported dsn scheme")
	}
}
