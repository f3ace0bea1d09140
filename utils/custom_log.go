package utils

import (
	"io"

	log "github.com/sirupsen/logrus"
	easy "github.com/t-tomalak/logrus-easy-formatter"
)

var (
	_colorPrint = false
	_plainFmt   = &easy.Formatter{
		TimestampFormat: "15:04:05.000",
		LogFormat:       "[%lvl%]: %time% - %msg%\n",
	}
	_colorFmt = &log.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	}
)

func init() {
	log.SetFormatter(_plainFmt)
	log.SetLevel(log.InfoLevel)
}

func SetColorPrint(enable bool) {
	_colorPrint = enable
	if _colorPrint {
		log.SetFormatter(_colorFmt)
		return
	}
	log.SetFormatter(_plainFmt)
}

// SetLogLevel maps a qtest style verbosity: 0 errors only, 1 warnings,
// 2 info, 3 and above debug.
func SetLogLevel(verbose int) {
	switch {
	case verbose <= 0:
		log.SetLevel(log.ErrorLevel)
	case verbose == 1:
		log.SetLevel(log.WarnLevel)
	case verbose == 2:
		log.SetLevel(log.InfoLevel)
	default:
		log.SetLevel(log.DebugLevel)
	}
}

func SetLogOutput(w io.Writer) {
	log.SetOutput(w)
}

func LogDebug(format string, v ...interface{}) {
	log.Debugf(format, v...)
}

func LogInfo(format string, v ...interface{}) {
	log.Infof(format, v...)
}

func LogWarn(format string, v ...interface{}) {
	log.Warnf(format, v...)
}

func LogErro(format string, v ...interface{}) {
	log.Errorf(format, v...)
}

func LogFatal(format string, v ...interface{}) {
	log.Fatalf(format, v...)
}
