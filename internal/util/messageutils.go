package util

import (
	"regexp"
	"strings"
)

const DefaultPrefix = "!"

// Command is a prefixed text command such as "!pkmn buy potion 3".
type Command struct {
	Name string
	Args []string
}

// Arg returns the i-th argument or "" when it is missing.
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// Rest joins the arguments from i on.
func (c Command) Rest(i int) string {
	if i >= len(c.Args) {
		return ""
	}
	return strings.Join(c.Args[i:], " ")
}

// ParseCommand splits content into a lower-cased command name and its
// arguments. ok is false when content does not start with prefix.
func ParseCommand(prefix, content string) (cmd Command, ok bool) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, prefix) {
		return Command{}, false
	}

	fields := strings.Fields(content[len(prefix):])
	if len(fields) == 0 {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(fields[0]), Args: fields[1:]}, true
}

var mentionRe = regexp.MustCompile(`^<@!?(\d+)>$`)

// MentionedUserID extracts the id from a user mention like <@123> or <@!123>.
func MentionedUserID(s string) (string, bool) {
	m := mentionRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func Mention(userID string) string {
	return "<@" + userID + ">"
}
