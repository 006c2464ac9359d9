package flow

// Selectors holds the ordered selector strategies for each element the
// login flow interacts with. Earlier entries are the markup we have seen on
// real deployments; later entries are generic fallbacks, since the identity
// provider's exact markup varies by deployment and version.
type Selectors struct {
	// InitialLogin is the "Log in" affordance some deployments show on an
	// intermediate page before redirecting to the identity provider.
	InitialLogin []string

	Email    []string
	Password []string

	// Next advances a multi-page flow from the email page to the password
	// page. Submit is the final log-in control. On single-page deployments
	// they are the same button.
	Next   []string
	Submit []string
}

// DefaultSelectors matches the identity provider sign-in pages this service
// targets, with generic fallbacks for markup drift.
func DefaultSelectors() Selectors {
	return Selectors{
		InitialLogin: []string{
			"#loginButton",
			`button[id*="login" i]`,
			`a[id*="login" i]`,
		},
		Email: []string{
			"#Input_Email",
			`input[type="email"]`,
			`input[name="Input.Email"]`,
			`input[placeholder*="mail" i]`,
		},
		Password: []string{
			"#Input_Password",
			`input[type="password"]`,
			`input[name="Input.Password"]`,
		},
		Next: []string{
			`button[type="submit"].btn.btn-primary`,
			`button[type="submit"]`,
			`input[type="submit"]`,
		},
		Submit: []string{
			`button[type="submit"].btn.btn-primary`,
			`button[type="submit"]`,
			`input[type="submit"]`,
		},
	}
}
