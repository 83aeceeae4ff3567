package xrcli

var log Logger = NoopLog{}

// Logger is the logging interface used by the package.  It is satisfied by
// *logrus.Logger and *logrus.Entry.
type Logger interface {
	Debugf(string, ...interface{})
	Infof(string, ...interface{})
	Warnf(string, ...interface{})
	Errorf(string, ...interface{})
}

// SetLog sets the package logger used by sessions without WithLogger.
func SetLog(l Logger) {
	if l == nil {
		l = NoopLog{}
	}
	log = l
}

// NoopLog discards everything.
type NoopLog struct{}

func (l NoopLog) Debugf(format string, v ...interface{}) {}
func (l NoopLog) Infof(format string, v ...interface{})  {}
func (l NoopLog) Warnf(format string, v ...interface{})  {}
func (l NoopLog) Errorf(format string, v ...interface{}) {}
