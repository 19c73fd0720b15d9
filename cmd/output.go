package cmd

import (
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/goccy/go-json"
)

// nolint:gochecknoglobals
var (
	okColor    = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
	keyColor   = color.New(color.FgCyan)
	errColor   = color.New(color.FgRed)
)

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	checkErr(enc.Encode(v))
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func formatVersion(v int64) string {
	return strconv.FormatInt(v, 10)
}
