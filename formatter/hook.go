package formatter

import (
	"fmt"
	"path"
	"runtime/debug"
	"strings"

	"github.com/sirupsen/logrus"
)

const fallbackModule = "appsign"

// ContextHook records the file and line of the log call in the entry
type ContextHook struct {
	// prefixes are cut from caller paths, tried in order
	prefixes []string
}

// NewContextHook creates a hook trimming caller paths relative to the main
// module, or to a checkout directory named appsign.
func NewContextHook() *ContextHook {
	return newContextHook(mainModule())
}

func newContextHook(module string) *ContextHook {
	prefixes := []string{module + "/"}
	if module != fallbackModule {
		prefixes = append(prefixes, fallbackModule+"/")
	}
	return &ContextHook{prefixes: prefixes}
}

// Levels set the supported levels for this hook
func (hook ContextHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire adds the caller location to entry.Data
func (hook ContextHook) Fire(entry *logrus.Entry) error {
	if entry.Caller == nil {
		return nil
	}
	entry.Data[sourceKey] = fmt.Sprintf("%s:%d", hook.parseSrc(entry.Caller.File), entry.Caller.Line)
	return nil
}

func mainModule() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Path != "" {
		return info.Main.Path
	}
	return fallbackModule
}

func (hook ContextHook) parseSrc(filePath string) string {
	for _, prefix := range hook.prefixes {
		if i := strings.LastIndex(filePath, prefix); i >= 0 {
			return filePath[i+len(prefix):]
		}
	}

	// caller outside the module: keep package dir and file name
	return path.Join(path.Base(path.Dir(filePath)), path.Base(filePath))
}
