package flows

import (
	"context"
)

// Account is a login the browser flows use.
type Account struct {
	Name     string
	Email    string
	Password string
}

// Options parameterize the default cases.
type Options struct {
	Account Account
	// RegisterName and RegisterPassword fill the registration form.
	RegisterName     string
	RegisterPassword string
	WrongPassword    string
	SearchQuery      string
	SearchTerm       string
	FilterCategory   string
	FilterMin        float64
	FilterMax        float64
}

// DefaultOptions returns the stock parameters for acct.
func DefaultOptions(acct Account) Options {
	return Options{
		Account:          acct,
		RegisterName:     "Test User",
		RegisterPassword: "SecurePassword123!",
		WrongPassword:    "WrongPassword123!",
		SearchQuery:      "summer dress",
		SearchTerm:       "dress",
		FilterCategory:   "Dresses",
		FilterMin:        20,
		FilterMax:        100,
	}
}

// Case is one browser flow bound to its parameters.
type Case struct {
	Flow   Flow
	Mobile bool // also run on device targets
	Run    func(ctx context.Context, env *Env) error
}

// BrowserCases returns every browser flow.
func BrowserCases(o Options) []Case {
	return []Case{
		{Flow: Registration, Run: func(ctx context.Context, env *Env) error {
			return Register(ctx, env, o.RegisterName, UniqueEmail(env.now()), o.RegisterPassword)
		}},
		{Flow: LoginValid, Run: func(ctx context.Context, env *Env) error {
			_, err := Login(ctx, env, o.Account.Email, o.Account.Password, o.Account.Name)
			return err
		}},
		{Flow: LoginRejected, Run: func(ctx context.Context, env *Env) error {
			return LoginInvalid(ctx, env, o.Account.Email, o.WrongPassword)
		}},
		{Flow: ProductSearch, Mobile: true, Run: func(ctx context.Context, env *Env) error {
			_, err := Search(ctx, env, o.SearchQuery, o.SearchTerm)
			return err
		}},
		{Flow: ProductFilter, Run: func(ctx context.Context, env *Env) error {
			_, err := Filter(ctx, env, o.FilterCategory, o.FilterMin, o.FilterMax)
			return err
		}},
		{Flow: CartAdd, Mobile: true, Run: func(ctx context.Context, env *Env) error {
			_, err := AddToCart(ctx, env)
			return err
		}},
		{Flow: CartQuantity, Run: func(ctx context.Context, env *Env) error {
			_, err := UpdateCartQuantity(ctx, env)
			return err
		}},
	}
}

// Select keeps the cases whose flow name is listed; an empty list keeps all.
func Select(cases []Case, names []string) []Case {
	if len(names) == 0 {
		return cases
	}
	want := map[string]bool{}
	for _, n := range names {
		want[n] = true
	}
	var out []Case
	for _, c := range cases {
		if want[c.Flow.Name] {
			out = append(out, c)
		}
	}
	return out
}
