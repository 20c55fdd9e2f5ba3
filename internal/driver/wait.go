package driver

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// PollInterval is how often the Wait helpers re-check the page.
var PollInterval = 100 * time.Millisecond

// WaitUntil polls cond until it reports true, returns an error, ctx ends or
// timeout elapses. what names the condition in the ErrTimeout message.
func WaitUntil(ctx context.Context, timeout time.Duration, what string, cond func() (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		ok, err := cond()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w after %s waiting for %s", ErrTimeout, timeout, what)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// WaitPresent waits until by/value matches an element and returns it.
func WaitPresent(ctx context.Context, f Finder, by By, value string, timeout time.Duration) (Element, error) {
	var found Element
	err := WaitUntil(ctx, timeout, Describe(by, value)+" to be present", func() (bool, error) {
		el, err := f.Find(by, value)
		if errors.Is(err, ErrNoSuchElement) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		found = el
		return true, nil
	})
	return found, err
}

// WaitClickable waits until by/value matches an element that is displayed
// and enabled.
func WaitClickable(ctx context.Context, f Finder, by By, value string, timeout time.Duration) (Element, error) {
	var found Element
	err := WaitUntil(ctx, timeout, Describe(by, value)+" to be clickable", func() (bool, error) {
		el, err := f.Find(by, value)
		if errors.Is(err, ErrNoSuchElement) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		visible, err := el.Displayed()
		if err != nil || !visible {
			return false, nil
		}
		enabled, err := el.Enabled()
		if err != nil || !enabled {
			return false, nil
		}
		found = el
		return true, nil
	})
	return found, err
}
