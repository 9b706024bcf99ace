// Package templates provides the tenant welcome email template
package templates

import "fmt"

type WelcomeEmailProps struct {
	Name         string
	TenantID     string
	DashboardURL string
}

func GetWelcomeEmailContent(props WelcomeEmailProps) string {
	content := GetParagraph(fmt.Sprintf("Hello %s,", props.Name)) +
		GetParagraph("Your CartPulse workspace is ready. Add the tracking snippet to your store and abandoned-cart campaigns will start running right away.") +
		GetButton(ButtonProps{
			Text: "Open Your Dashboard",
			URL:  props.DashboardURL,
		}) +
		GetParagraph(fmt.Sprintf("Your workspace id is <strong>%s</strong>. You'll need it when configuring the snippet.", props.TenantID))

	return content
}
