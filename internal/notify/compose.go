package notify

import (
	"fmt"
	"strings"

	"github.com/stopransomware/victimfeed/internal/normalize"
)

// ComposeDigest builds the subject and markdown body for one
// subscriber's digest of newly reported victims.
func ComposeDigest(victims []normalize.VictimRecord, unsubscribeURL string) (subject, body string) {
	if len(victims) == 1 {
		subject = "1 new ransomware victim reported"
	} else {
		subject = fmt.Sprintf("%d new ransomware victims reported", len(victims))
	}

	var b strings.Builder
	b.WriteString("## Newly reported victims\n\n")
	for _, v := range victims {
		b.WriteString("- **")
		b.WriteString(v.VictimName)
		b.WriteString("**")

		var details []string
		if v.GroupName != "" {
			details = append(details, "group "+v.GroupName)
		}
		if v.Country != nil {
			details = append(details, *v.Country)
		}
		if v.Industry != nil {
			details = append(details, *v.Industry)
		}
		if t, ok := v.When(); ok {
			details = append(details, t.Format("2006-01-02"))
		}
		if len(details) > 0 {
			b.WriteString(" (")
			b.WriteString(strings.Join(details, ", "))
			b.WriteString(")")
		}
		b.WriteString("\n")
	}

	b.WriteString("\n---\n\n")
	b.WriteString("You receive these alerts because you subscribed to new victim reports.\n\n")
	fmt.Fprintf(&b, "[Unsubscribe](%s)\n", unsubscribeURL)

	return subject, b.String()
}

// ComposeWelcome builds the welcome mail sent after a signup or
// reactivation.
func ComposeWelcome(countries []string, unsubscribeURL string) (subject, body string) {
	subject = "Subscription confirmed: ransomware victim alerts"

	var b strings.Builder
	b.WriteString("## You're subscribed\n\n")
	if len(countries) == 0 {
		b.WriteString("You will receive alerts for newly reported ransomware victims in **all countries**.\n")
	} else {
		fmt.Fprintf(&b, "You will receive alerts for newly reported ransomware victims in: **%s**.\n",
			strings.Join(countries, ", "))
	}
	b.WriteString("\nAlerts go out when new victims appear in the public feed, typically every few hours.\n")
	b.WriteString("\n---\n\n")
	fmt.Fprintf(&b, "[Unsubscribe](%s)\n", unsubscribeURL)

	return subject, b.String()
}

// UnsubscribeURL builds the unsubscribe link for a token.
func UnsubscribeURL(siteBaseURL, token string) string {
	return strings.TrimRight(siteBaseURL, "/") + "/unsubscribe?token=" + token
}
