package email

// Template names.
const (
	TemplateWelcome = "welcome"
)

// WelcomeData fills the welcome email sent after registration.
type WelcomeData struct {
	Name    string
	ShopURL string
}
