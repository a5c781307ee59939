package logger

import (
	"fmt"
	"time"
)

// ANSI color codes. Terminals that don't support them just show the raw
// escape sequences in redirected output, which is acceptable for a dev tool.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func timestamp() string {
	return time.Now().Format("15:04:05")
}

func logLine(color, level, tag, msg string) {
	fmt.Printf("%s%s%s %s[%s]%s %s%-10s%s %s\n",
		colorGray, timestamp(), colorReset,
		color, level, colorReset,
		colorBold, tag, colorReset,
		msg)
}

// Info logs an informational message with a component tag.
func Info(tag, msg string) {
	logLine(colorCyan, "INFO", tag, msg)
}

// Success logs a success message.
func Success(tag, msg string) {
	logLine(colorGreen, " OK ", tag, msg)
}

// Warn logs a warning.
func Warn(tag, msg string) {
	logLine(colorYellow, "WARN", tag, msg)
}

// Error logs an error.
func Error(tag, msg string) {
	logLine(colorRed, "FAIL", tag, msg)
}

// Banner prints the startup banner with the build version.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	fmt.Printf("%s%s", colorCyan, colorBold)
	fmt.Println(`     _                  _                 `)
	fmt.Println(`  __| | _   _  _ __    | |__   ___   _ __  `)
	fmt.Println(` / _' || | | || '_ \   | '_ \ / _ \ | '_ \ `)
	fmt.Println(`| (_| || |_| || | | |  \__ \| (_) || |_) |`)
	fmt.Println(` \__,_| \__, ||_| |_|  |___/ \___/ | .__/ `)
	fmt.Println(`        |___/                      |_|    `)
	fmt.Printf("%s dynamic market pricing engine  %s%s%s\n\n", colorReset, colorGray, version, colorReset)
}

// Server logs the listen address once the HTTP server is up.
func Server(addr string) {
	fmt.Printf("%s>>%s Listening on %shttp://%s%s\n", colorGreen, colorReset, colorBold, addr, colorReset)
}

// Section prints a visual separator for a named phase.
func Section(name string) {
	fmt.Printf("\n%s--- %s ---%s\n", colorGray, name, colorReset)
}

// Stats prints a key/value pair, right-aligned for scanability.
func Stats(key string, value interface{}) {
	fmt.Printf("  %s%-24s%s %v\n", colorGray, key, colorReset, value)
}
