// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"fmt"
	"regexp"
	"strings"
)

// Worker type labels, also used in container names.
const (
	TypeLogger   = "log"
	TypeListener = "listener"
)

// Label keys carried by every worker container.
const (
	LabelProject   = "solanagram.project"
	LabelType      = "solanagram.type"
	LabelUserID    = "solanagram.user_id"
	LabelSessionID = "solanagram.session_id"
)

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)
var repeatedSeparators = regexp.MustCompile(`_+`)

// sanitizeNamePart makes a string safe for use inside a container name:
// runs of characters other than letters, digits, '_', '.' and '-' become
// single underscores, repeated and edge underscores are squeezed out, and a
// chat id's leading minus is dropped so names stay readable.
func sanitizeNamePart(part string) string {
	part = strings.TrimPrefix(part, "-")
	part = invalidNameChars.ReplaceAllString(part, "_")
	part = repeatedSeparators.ReplaceAllString(part, "_")
	return strings.Trim(part, "_")
}

// LogContainerName returns the deterministic name of a logging worker:
// solanagram-log-{user_id}-{safe_chat_id}.
func LogContainerName(userID, chatID int64) string {
	return fmt.Sprintf("solanagram-%s-%d-%s", TypeLogger, userID, sanitizeNamePart(fmt.Sprintf("%d", chatID)))
}

// ListenerContainerName returns the deterministic name of a listener worker:
// solanagram-listener-{user_id}-{safe_chat_id}.
func ListenerContainerName(userID, sourceChatID int64) string {
	return fmt.Sprintf("solanagram-%s-%d-%s", TypeListener, userID, sanitizeNamePart(fmt.Sprintf("%d", sourceChatID)))
}
