package notification

import "fmt"

// Subject is the subject line of verification emails.
const Subject = "VidLink - Verification Code"

// RenderHTML produces the styled HTML body for a verification email.
// Deterministic given its inputs.
func RenderHTML(code, firstName string) string {
	return fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f8f9fa;">
  <div style="background: linear-gradient(135deg, #1e293b 0%%, #0f172a 100%%); color: white; padding: 30px; border-radius: 10px; text-align: center;">
    <h1 style="margin: 0; font-size: 28px;">VidLink</h1>
    <p style="margin: 10px 0 0 0; opacity: 0.9;">Secure Video Calling</p>
  </div>
  <div style="background: white; padding: 40px; border-radius: 10px; margin-top: 20px;">
    <h2 style="color: #1e293b; margin-top: 0;">Hi %s!</h2>
    <p style="color: #64748b; font-size: 16px; line-height: 1.6;">
      To complete your sign-in, please use the verification code below:
    </p>
    <div style="background: #f1f5f9; border: 2px dashed #3b82f6; border-radius: 10px; padding: 30px; text-align: center; margin: 30px 0;">
      <h1 style="color: #3b82f6; font-size: 36px; margin: 0; letter-spacing: 4px; font-family: monospace;">%s</h1>
    </div>
    <p style="color: #64748b; font-size: 14px; margin-bottom: 0;">
      This code will expire in 10 minutes. If you didn't request this code, please ignore this email.
    </p>
    <div style="background: #fef3c7; border: 1px solid #f59e0b; border-radius: 8px; padding: 15px; margin-top: 20px;">
      <p style="color: #92400e; font-size: 13px; margin: 0;">
        <strong>Note:</strong> This email works with all email providers including Gmail, Yahoo, Outlook, iCloud, and more.
      </p>
    </div>
  </div>
  <div style="text-align: center; margin-top: 20px; color: #94a3b8; font-size: 12px;">
    <p>VidLink - Connecting people worldwide</p>
    <p>This service works with all major email providers</p>
  </div>
</div>`, firstName, code)
}

// RenderText produces the plain-text body equivalent to RenderHTML.
func RenderText(code, firstName string) string {
	return fmt.Sprintf(`VidLink - Verification Code

Hi %s!

Your verification code is: %s

This code will expire in 10 minutes.

If you didn't request this code, please ignore this email.

Note: This service works with all major email providers including Gmail, Yahoo, Outlook, iCloud, and more.

VidLink - Connecting people worldwide
`, firstName, code)
}

// buildMessage assembles a multipart/alternative MIME message with both the
// plain-text and HTML renderings.
func (s *EmailService) buildMessage(to, code, firstName, messageID string) []byte {
	from := s.config.User
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.User)
	}

	const boundary = "vidlink-alt"
	msg := fmt.Sprintf("From: %s\r\n", from) +
		fmt.Sprintf("To: %s\r\n", to) +
		fmt.Sprintf("Subject: %s\r\n", Subject) +
		fmt.Sprintf("Message-ID: %s\r\n", messageID) +
		"MIME-Version: 1.0\r\n" +
		fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q\r\n", boundary) +
		"\r\n" +
		fmt.Sprintf("--%s\r\n", boundary) +
		"Content-Type: text/plain; charset=UTF-8\r\n\r\n" +
		RenderText(code, firstName) + "\r\n" +
		fmt.Sprintf("--%s\r\n", boundary) +
		"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
		RenderHTML(code, firstName) + "\r\n" +
		fmt.Sprintf("--%s--\r\n", boundary)
	return []byte(msg)
}
