/*
 * Helper functions for messenger package
 */

package messenger

import (
	"fmt"
	"strings"
)

/*
 * bareJID strips the resource from a "from" attribute and lowercases it:
 *	    <user>@<server>.tld/Resource -> <user>@<server>.tld
 * Server-only senders (<server>.tld) are rejected since they are never recipients.
 */
func bareJID(from string) (string, error) {
	jid, _, _ := strings.Cut(strings.TrimSpace(from), "/")
	local, domain, ok := strings.Cut(jid, "@")
	if !ok || local == "" || domain == "" || strings.ContainsAny(jid, " <>") {
		return "", fmt.Errorf("'from' string '%s' is not a user JID", from)
	}
	return strings.ToLower(jid), nil
}
