package email

import (
	"fmt"
	"html"
)

const layout = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%[1]s</title>
</head>
<body style="margin: 0; padding: 0; font-family: Arial, sans-serif; background-color: #f4f4f4;">
    <table role="presentation" style="width: 100%%; border-collapse: collapse;">
        <tr>
            <td align="center" style="padding: 40px 0;">
                <table role="presentation" style="width: 600px; border-collapse: collapse; background-color: #ffffff; border-radius: 8px;">
                    <tr>
                        <td style="padding: 40px 30px; text-align: center; background-color: %[2]s; border-radius: 8px 8px 0 0;">
                            <h1 style="margin: 0; color: #ffffff; font-size: 28px;">%[1]s</h1>
                        </td>
                    </tr>
                    <tr>
                        <td style="padding: 40px 30px; font-size: 16px; line-height: 24px; color: #333333;">
%[3]s
                        </td>
                    </tr>
                    <tr>
                        <td style="padding: 30px; text-align: center; background-color: #f8f8f8; border-radius: 0 0 8px 8px;">
                            <p style="margin: 0; font-size: 12px; color: #999999;">Metatech CRM</p>
                        </td>
                    </tr>
                </table>
            </td>
        </tr>
    </table>
</body>
</html>
`

func render(title, color, body string) string {
	return fmt.Sprintf(layout, html.EscapeString(title), color, body)
}

func button(href, label, color string) string {
	return fmt.Sprintf(`<p style="margin: 30px 0; text-align: center;"><a href="%s" style="display: inline-block; padding: 14px 40px; background-color: %s; color: #ffffff; text-decoration: none; border-radius: 6px; font-weight: bold;">%s</a></p>`,
		html.EscapeString(href), color, html.EscapeString(label))
}

// InvitationSubject names the portal being joined
func InvitationSubject(msg InvitationMessage) string {
	if msg.CompanyName != "" {
		return fmt.Sprintf("You're invited to join %s on Metatech CRM", msg.CompanyName)
	}
	return "You're invited to join the Metatech staff portal"
}

// InvitationEmailTemplate generates HTML for an invitation
func InvitationEmailTemplate(msg InvitationMessage) string {
	target := "the Metatech staff portal"
	if msg.CompanyName != "" {
		target = msg.CompanyName
	}

	intro := fmt.Sprintf("<p>You have been invited to join <strong>%s</strong> as <strong>%s</strong>.</p>",
		html.EscapeString(target), html.EscapeString(msg.Role))
	if msg.InviterName != "" {
		intro = fmt.Sprintf("<p>%s invited you to join <strong>%s</strong> as <strong>%s</strong>.</p>",
			html.EscapeString(msg.InviterName), html.EscapeString(target), html.EscapeString(msg.Role))
	}

	body := intro +
		button(msg.AcceptURL, "Accept Invitation", "#4F46E5") +
		fmt.Sprintf(`<p style="font-size: 14px; color: #666666;">This link can be used once and expires on %s.</p>`,
			msg.ExpiresAt.UTC().Format("Jan 2, 2006 15:04 MST"))

	return render("You're Invited", "#4F46E5", body)
}

// WelcomeEmailTemplate generates HTML for a newly created account
func WelcomeEmailTemplate(name, loginURL string) string {
	body := fmt.Sprintf("<p>Hi %s,</p><p>Your account is ready. Always sign in from the address below.</p>",
		html.EscapeString(name)) +
		button(loginURL, "Sign In", "#10B981")

	return render("Welcome", "#10B981", body)
}

// PasswordChangedEmailTemplate generates HTML for password changed notification
func PasswordChangedEmailTemplate(name string) string {
	body := fmt.Sprintf("<p>Hi %s,</p>"+
		"<p>This is a confirmation that your password has been changed and every session was signed out.</p>"+
		"<p>If you didn't make this change, please contact your administrator immediately.</p>",
		html.EscapeString(name))

	return render("Password Changed", "#F59E0B", body)
}
