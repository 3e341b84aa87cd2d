// Package logger is a thin object-prefixed facade over logrus. Each record
// names the pipeline object it concerns, so interleaved stage, pool and
// backend logs stay attributable.
package logger

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/sirupsen/logrus"
)

type stringer interface {
	String() string
}

type logPair struct {
	logFn func(...any)
	obj   string
	msg   string
}

const (
	logSize   = 1000
	objColumn = 20
)

var logCh = make(chan logPair, logSize)

func objToString(obj any) (objStr string) {
	if obj == nil {
		objStr = "NIL"
	} else if stringerObj, ok := obj.(stringer); ok {
		objStr = stringerObj.String()
	} else if objStr, ok = obj.(string); ok {
	} else {
		objStr = reflect.TypeOf(obj).Name()
	}
	return
}

// Init sets the global level and starts the formatting goroutine. Call once
// from the host before streaming starts.
func Init(lvl logrus.Level) {
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		PadLevelText:    true,
		TimestampFormat: "2006/02/01 15:04:05",
	})

	go func() {
		sb := new(bytes.Buffer)
		for pair := range logCh {
			if len(pair.obj) > objColumn {
				pair.obj = pair.obj[:objColumn]
			}
			sb.WriteString(fmt.Sprintf("|%20s|%-100s", pair.obj, pair.msg))
			pair.logFn(sb.String())
			sb.Reset()
		}
	}()
}

func emit(lvl logrus.Level, logFn func(...any), object any, message string, args ...any) {
	if logrus.GetLevel() < lvl {
		return
	}
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}
	logCh <- logPair{
		logFn: logFn,
		obj:   objToString(object),
		msg:   message,
	}
}

func Trace(object any, message string) {
	emit(logrus.TraceLevel, logrus.Trace, object, message)
}

func Tracef(object any, message string, args ...any) {
	emit(logrus.TraceLevel, logrus.Trace, object, message, args...)
}

func Debug(object any, message string) {
	emit(logrus.DebugLevel, logrus.Debug, object, message)
}

func Debugf(object any, message string, args ...any) {
	emit(logrus.DebugLevel, logrus.Debug, object, message, args...)
}

func Info(object any, message string) {
	emit(logrus.InfoLevel, logrus.Info, object, message)
}

func Infof(object any, message string, args ...any) {
	emit(logrus.InfoLevel, logrus.Info, object, message, args...)
}

func Warning(object any, message string) {
	emit(logrus.WarnLevel, logrus.Warning, object, message)
}

func Warningf(object any, message string, args ...any) {
	emit(logrus.WarnLevel, logrus.Warning, object, message, args...)
}

func Error(object any, message string) {
	emit(logrus.ErrorLevel, logrus.Error, object, message)
}

func Errorf(object any, message string, args ...any) {
	emit(logrus.ErrorLevel, logrus.Error, object, message, args...)
}
