package router

import (
	"html"
	"slices"
	"strings"

	kit "slabot/internal/transport"
)

// helpText renders help in Telegram HTML. Admin commands are listed only
// for admins.
func (m *CommandManager) helpText(args []string, admin bool) string {
	cmds := m.Commands()
	if len(args) > 0 {
		name, _ := commandWord(args[0])
		if c, ok := m.lookup(name); ok && (admin || c.Access != AccessAdmin) {
			return commandHelp(c)
		}
		return "❓ <b>Unknown command</b>\nType <code>/help</code> to list commands."
	}

	slices.SortStableFunc(cmds, func(a, b Command) int {
		if a.Access != b.Access {
			return int(a.Access) - int(b.Access)
		}
		return strings.Compare(a.Name, b.Name)
	})
	lines := []string{"📚 <b>Commands</b>", "Type <code>/help &lt;cmd&gt;</code> for details.", ""}
	for _, c := range cmds {
		if c.Access == AccessAdmin && !admin {
			continue
		}
		prefix := "• "
		if c.Access == AccessAdmin {
			prefix = "• 🔒 "
		}
		line := prefix + "<code>/" + html.EscapeString(c.Name) + "</code>"
		if d := strings.TrimSpace(c.Description); d != "" {
			line += " - " + html.EscapeString(d)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func commandHelp(c Command) string {
	lines := []string{"📚 <b>Help</b> <code>/" + html.EscapeString(c.Name) + "</code>"}
	if d := strings.TrimSpace(c.Description); d != "" {
		lines = append(lines, html.EscapeString(d))
	}
	if c.Access == AccessAdmin {
		lines = append(lines, "🔒 <i>admins only</i>")
	}
	if u := strings.TrimSpace(c.Usage); u != "" {
		lines = append(lines, "", "<b>Usage</b>", "<code>"+html.EscapeString(u)+"</code>")
	}
	if len(c.Aliases) > 0 {
		al := make([]string, 0, len(c.Aliases))
		for _, a := range c.Aliases {
			al = append(al, "<code>/"+html.EscapeString(a)+"</code>")
		}
		lines = append(lines, "", "<b>Aliases</b> "+strings.Join(al, " "))
	}
	return strings.Join(lines, "\n")
}

// menuCommands builds the client menu: one entry per command, sorted by name.
func menuCommands(cmds []Command) []kit.BotCommand {
	out := make([]kit.BotCommand, 0, len(cmds))
	seen := map[string]bool{}
	for _, c := range cmds {
		name := sanitizeCommand(c.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		desc := strings.ReplaceAll(strings.TrimSpace(c.Description), "\n", " ")
		if desc == "" {
			desc = name
		}
		if c.Access == AccessAdmin {
			desc = "🔒 " + desc
		}
		out = append(out, kit.BotCommand{Command: name, Description: desc})
	}
	slices.SortFunc(out, func(a, b kit.BotCommand) int { return strings.Compare(a.Command, b.Command) })
	return out
}
