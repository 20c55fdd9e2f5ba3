package flows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kuitang/stylehaven/internal/driver"
	"github.com/kuitang/stylehaven/internal/obs"
)

// UniqueEmail returns a registration address that collides neither with
// earlier runs nor with registrations running concurrently in the same
// second.
func UniqueEmail(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("testuser_%d_%s@example.com", now.Unix(), suffix)
}

// Register fills the registration form and expects the success banner.
func Register(ctx context.Context, env *Env, fullName, email, password string) error {
	return Run(ctx, env, Registration, func(ctx context.Context) error {
		if err := env.Driver.Get(env.url("/register")); err != nil {
			return err
		}
		if err := env.fill(
			[2]string{"fullname", fullName},
			[2]string{"email", email},
			[2]string{"password", password},
			[2]string{"confirm_password", password},
		); err != nil {
			return err
		}
		if err := env.click(driver.ByID, "terms_checkbox"); err != nil {
			return err
		}
		if err := env.click(driver.ByID, "register_button"); err != nil {
			return err
		}

		msg, err := env.waitPresent(ctx, driver.ByClassName, "registration-success")
		if err != nil {
			return err
		}
		text, err := msg.Text()
		if err != nil {
			return err
		}
		if !strings.Contains(text, "Registration successful") {
			return expectf("registration banner %q does not confirm success", text)
		}
		obs.From(ctx).Info("registration successful", "email", email)
		return nil
	})
}

// Login signs in and expects the dashboard to greet wantName. An empty
// wantName skips the greeting check. It returns the displayed name.
func Login(ctx context.Context, env *Env, email, password, wantName string) (string, error) {
	var shown string
	err := Run(ctx, env, LoginValid, func(ctx context.Context) error {
		if err := env.Driver.Get(env.url("/login")); err != nil {
			return err
		}
		if err := env.fill([2]string{"email", email}, [2]string{"password", password}); err != nil {
			return err
		}
		if err := env.click(driver.ByID, "login_button"); err != nil {
			return err
		}
		if _, err := env.waitPresent(ctx, driver.ByID, "user_dashboard"); err != nil {
			return err
		}
		el, err := env.Driver.Find(driver.ByID, "user_name_display")
		if err != nil {
			return err
		}
		if shown, err = el.Text(); err != nil {
			return err
		}
		if wantName != "" && !strings.Contains(shown, wantName) {
			return expectf("dashboard shows %q, want it to contain %q", shown, wantName)
		}
		obs.From(ctx).Info("login successful with valid credentials")
		return nil
	})
	return shown, err
}

// LoginInvalid submits a wrong password and expects the login error.
func LoginInvalid(ctx context.Context, env *Env, email, wrongPassword string) error {
	return Run(ctx, env, LoginRejected, func(ctx context.Context) error {
		if err := env.Driver.Get(env.url("/login")); err != nil {
			return err
		}
		if err := env.fill([2]string{"email", email}, [2]string{"password", wrongPassword}); err != nil {
			return err
		}
		if err := env.click(driver.ByID, "login_button"); err != nil {
			return err
		}
		msg, err := env.waitPresent(ctx, driver.ByClassName, "login-error")
		if err != nil {
			return err
		}
		text, err := msg.Text()
		if err != nil {
			return err
		}
		if !strings.Contains(text, "Invalid email or password") {
			return expectf("login error %q does not mention invalid credentials", text)
		}
		obs.From(ctx).Info("login correctly rejected with invalid credentials")
		return nil
	})
}
