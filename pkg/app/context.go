package app

import (
	"context"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Context holds application-wide configuration and state
type Context struct {
	context.Context

	// Output preferences
	OutputFormat string
	Verbose      bool
	Quiet        bool
	NoColor      bool

	// Out receives command output; defaults to os.Stdout
	Out io.Writer

	Logger *logrus.Logger
}

// NewContext creates a new application context
func NewContext() *Context {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	return &Context{
		Context:      context.Background(),
		OutputFormat: "table",
		Out:          os.Stdout,
		Logger:       logger,
	}
}

// Apply sets the logger level and colour mode from the verbosity flags
func (c *Context) Apply() {
	switch {
	case c.Quiet:
		c.Logger.SetLevel(logrus.ErrorLevel)
	case c.Verbose:
		c.Logger.SetLevel(logrus.DebugLevel)
	default:
		c.Logger.SetLevel(logrus.WarnLevel)
	}
	if c.NoColor {
		color.NoColor = true
	}
}

// WithCancel creates a cancellable context
func (c *Context) WithCancel() (*Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(c.Context)
	newCtx := *c
	newCtx.Context = ctx
	return &newCtx, cancel
}

// Log outputs a message based on verbosity settings
func (c *Context) Log(format string, args ...interface{}) {
	c.Logger.Debugf(format, args...)
}

// Error outputs an error message unless quiet
func (c *Context) Error(err error) {
	if kind := KindOf(err); kind != "" {
		c.Logger.WithField("kind", kind).Error(err)
		return
	}
	c.Logger.Error(err)
}
