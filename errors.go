/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

func newLogger(cfg *Config) zerolog.Logger {
	return newLoggerTo(cfg, os.Stdout)
}

func newLoggerTo(cfg *Config, out io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.verbose {
		level = zerolog.DebugLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: logDate}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<link rel="stylesheet" href="/assets/scene/app.css">`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body class=\"page\"><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
