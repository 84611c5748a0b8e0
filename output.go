package wrenlet

import (
	"bytes"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogOutput is an output sink that turns script output into log entries, one
// per line. A trailing partial line is logged by Close, which the VM calls
// at teardown.
type LogOutput struct {
	logger *zap.Logger
	level  zapcore.Level
	buf    bytes.Buffer
}

var _ io.WriteCloser = (*LogOutput)(nil)

// NewLogOutput returns a LogOutput writing to logger at level.
func NewLogOutput(logger *zap.Logger, level zapcore.Level) *LogOutput {
	return &LogOutput{logger: logger.With(zap.String("source", "script")), level: level}
}

func (o *LogOutput) Write(p []byte) (int, error) {
	o.buf.Write(p)
	for {
		line, err := o.buf.ReadBytes('\n')
		if err != nil {
			// Keep the partial line for the next write.
			rest := append([]byte(nil), line...)
			o.buf.Reset()
			o.buf.Write(rest)
			return len(p), nil
		}
		o.emit(line[:len(line)-1])
	}
}

// Close logs any partial line.
func (o *LogOutput) Close() error {
	if o.buf.Len() > 0 {
		o.emit(o.buf.Bytes())
		o.buf.Reset()
	}
	return nil
}

func (o *LogOutput) emit(line []byte) {
	if ce := o.logger.Check(o.level, string(line)); ce != nil {
		ce.Write()
	}
}
