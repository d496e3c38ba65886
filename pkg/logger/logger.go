package logger

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Logger struct {
	logger *logrus.Logger
	fields logrus.Fields
}

type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
	FatalLevel LogLevel = "fatal"
)

type Config struct {
	Level      LogLevel `json:"level"`
	Format     string   `json:"format"` // json, text
	Output     string   `json:"output"` // stdout, stderr, file path
	TimeFormat string   `json:"time_format"`
	Caller     bool     `json:"caller"`
}

func NewLogger(config *Config) (*Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(string(config.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if config.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: config.TimeFormat,
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: config.TimeFormat,
		})
	}

	if config.Output == "stderr" {
		logger.SetOutput(os.Stderr)
	} else if config.Output == "stdout" || config.Output == "" {
		logger.SetOutput(os.Stdout)
	} else {
		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, err
		}
		logger.SetOutput(file)
	}

	logger.SetReportCaller(config.Caller)

	return &Logger{
		logger: logger,
		fields: make(logrus.Fields),
	}, nil
}

func (l *Logger) WithField(key string, value interface{}) *Logger {
	newFields := make(logrus.Fields)
	for k, v := range l.fields {
		newFields[k] = v
	}
	newFields[key] = value

	return &Logger{
		logger: l.logger,
		fields: newFields,
	}
}

func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	newFields := make(logrus.Fields)
	for k, v := range l.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}

	return &Logger{
		logger: l.logger,
		fields: newFields,
	}
}

func (l *Logger) WithContext(ctx context.Context) *Logger {
	fields := extractContextFields(ctx)
	return l.WithFields(fields)
}

func (l *Logger) WithError(err error) *Logger {
	return l.WithField("error", err.Error())
}

func (l *Logger) WithRideID(rideID primitive.ObjectID) *Logger {
	return l.WithField("ride_id", rideID.Hex())
}

func (l *Logger) WithDriverID(driverID primitive.ObjectID) *Logger {
	return l.WithField("driver_id", driverID.Hex())
}

func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.WithField("request_id", requestID)
}

func (l *Logger) Debug(msg string) {
	l.logger.WithFields(l.fields).Debug(msg)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Debugf(format, args...)
}

func (l *Logger) Info(msg string) {
	l.logger.WithFields(l.fields).Info(msg)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Infof(format, args...)
}

func (l *Logger) Warn(msg string) {
	l.logger.WithFields(l.fields).Warn(msg)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Warnf(format, args...)
}

func (l *Logger) Error(msg string) {
	l.logger.WithFields(l.fields).Error(msg)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Errorf(format, args...)
}

func (l *Logger) Fatal(msg string) {
	l.logger.WithFields(l.fields).Fatal(msg)
}

func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.logger.WithFields(l.fields).Fatalf(format, args...)
}

// LogRideEvent records a ride lifecycle event with a stable shape for log
// pipelines.
func (l *Logger) LogRideEvent(rideID primitive.ObjectID, event string, details map[string]interface{}) {
	fields := map[string]interface{}{
		"ride_id": rideID.Hex(),
		"event":   event,
		"type":    "ride_event",
	}

	for k, v := range details {
		fields[k] = v
	}

	l.WithFields(fields).Info("Ride event occurred")
}

// LogSweepReport records the outcome of one reconciliation sweep.
func (l *Logger) LogSweepReport(cancelledRides, expiredOffers, offlineDrivers int64) {
	l.WithFields(map[string]interface{}{
		"cancelled_rides": cancelledRides,
		"expired_offers":  expiredOffers,
		"offline_drivers": offlineDrivers,
		"type":            "sweep_report",
	}).Info("Reconciliation sweep completed")
}

func (l *Logger) SetOutput(output io.Writer) {
	l.logger.SetOutput(output)
}

func (l *Logger) SetLevel(level LogLevel) {
	logrusLevel, err := logrus.ParseLevel(string(level))
	if err != nil {
		logrusLevel = logrus.InfoLevel
	}
	l.logger.SetLevel(logrusLevel)
}

// Helper function to extract fields from context
func extractContextFields(ctx context.Context) map[string]interface{} {
	fields := make(map[string]interface{})

	if userID := ctx.Value("user_id"); userID != nil {
		if oid, ok := userID.(primitive.ObjectID); ok {
			fields["user_id"] = oid.Hex()
		} else if str, ok := userID.(string); ok {
			fields["user_id"] = str
		}
	}

	if requestID := ctx.Value("request_id"); requestID != nil {
		if str, ok := requestID.(string); ok {
			fields["request_id"] = str
		}
	}

	return fields
}
