package formatter

import "github.com/sirupsen/logrus"

// SetTextFormatter set the formatter for given logger. Hooks previously
// registered on the logger are replaced.
func SetTextFormatter(logger *logrus.Logger) {
	logger.SetFormatter(NewTextFormatter())
	logger.SetReportCaller(true)
	logger.ReplaceHooks(make(logrus.LevelHooks))
	logger.AddHook(NewContextHook())
}
