// Package popup opens the options page, falling back to a second method
// and finally alerting the user when both fail.
package popup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pkg/browser"
)

// openURL opens a URL in the desktop's default browser.
var openURL = browser.OpenURL

// FailureMessage is shown when no method could open the options page.
const FailureMessage = "Could not open options page. Please try again or restart the browser."

// Func opens the options page one way.
type Func func(ctx context.Context) error

// Opener tries Primary, then Fallback, then calls Alert.
type Opener struct {
	Primary  Func
	Fallback Func
	Alert    func(msg string)
	Logger   *slog.Logger
}

// Open runs the methods in order. It returns nil as soon as one succeeds;
// otherwise Alert receives FailureMessage and the joined errors are
// returned.
func (o *Opener) Open(ctx context.Context) error {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var errs []error
	for _, m := range []struct {
		name string
		fn   Func
	}{{"primary", o.Primary}, {"fallback", o.Fallback}} {
		if m.fn == nil {
			continue
		}
		err := call(ctx, m.fn)
		if err == nil {
			logger.Debug("popup: options opened", "method", m.name)
			return nil
		}
		logger.Warn("popup: open options", "method", m.name, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", m.name, err))
	}

	if o.Alert != nil {
		o.Alert(FailureMessage)
	}
	if len(errs) == 0 {
		return errors.New("popup: no method to open options")
	}
	return fmt.Errorf("popup: %w", errors.Join(errs...))
}

// call turns a panic in fn into an error, like a thrown exception.
func call(ctx context.Context, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// SystemBrowser returns a Func that opens url with the desktop's default
// browser.
func SystemBrowser(url string) Func {
	return func(context.Context) error {
		return openURL(url)
	}
}
