package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
)

// Level orders log severities. Messages below the active level are dropped.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	cDbg  = color.New(color.FgMagenta).SprintFunc()
	cInf  = color.New(color.FgCyan, color.Bold).SprintFunc()
	cWarn = color.New(color.FgYellow, color.Bold).SprintFunc()
	cErr  = color.New(color.FgRed, color.Bold).SprintFunc()
	cSucc = color.New(color.FgGreen, color.Bold).SprintFunc()
	cFatl = color.New(color.BgRed, color.FgWhite, color.Bold).SprintFunc()
	cTime = color.New(color.FgHiBlack).SprintFunc()
)

var level atomic.Int32

func init() {
	log.SetFlags(0)
	level.Store(int32(LevelInfo))
}

// ParseLevel maps a level name to a Level. Unknown names map to LevelInfo,
// "trace" is treated as debug.
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug", "trace":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error", "critical":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetLevel changes the process-wide log level.
func SetLevel(l Level) {
	level.Store(int32(l))
}

func enabled(l Level) bool {
	return Level(level.Load()) <= l
}

func timeStamp() string {
	return cTime(time.Now().Format("2006-01-02 15:04:05"))
}

func LogDebug(format string, v ...interface{}) {
	if !enabled(LevelDebug) {
		return
	}
	msg := fmt.Sprintf(format, v...)
	fmt.Printf("%s %s %s\n", timeStamp(), cDbg("[DBG]"), msg)
}

func LogInfo(format string, v ...interface{}) {
	if !enabled(LevelInfo) {
		return
	}
	msg := fmt.Sprintf(format, v...)
	fmt.Printf("%s %s %s\n", timeStamp(), cInf("[INFO]"), msg)
}

func LogSuccess(format string, v ...interface{}) {
	if !enabled(LevelInfo) {
		return
	}
	msg := fmt.Sprintf(format, v...)
	fmt.Printf("%s %s %s\n", timeStamp(), cSucc("[OK]"), msg)
}

func LogWarn(format string, v ...interface{}) {
	if !enabled(LevelWarn) {
		return
	}
	msg := fmt.Sprintf(format, v...)
	fmt.Printf("%s %s %s\n", timeStamp(), cWarn("[WARN]"), msg)
}

func LogError(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	fmt.Fprintf(os.Stderr, "%s %s %s\n", timeStamp(), cErr("[ERR]"), msg)
}

func LogFatal(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	fmt.Fprintf(os.Stderr, "%s %s %s\n", timeStamp(), cFatl("[FATAL]"), msg)
	os.Exit(1)
}

func LogServerStart(port int, env string) {
	fmt.Println()
	fmt.Printf("   %s  %s\n", cSucc("⚡ Catalog is Active"), cTime("waiting for requests..."))
	fmt.Printf("   %s  %s\n", cInf("➜ Local:"), fmt.Sprintf("http://localhost:%d", port))
	fmt.Printf("   %s  %s\n", cInf("➜ API:"), color.New(color.FgHiBlue, color.Underline).Sprintf("http://localhost:%d/api/v1/images", port))
	fmt.Printf("   %s  %s\n", cInf("➜ Env:"), env)
	fmt.Println()
}
