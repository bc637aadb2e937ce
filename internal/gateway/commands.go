package gateway

import "strings"

type SlashCommand struct {
	Name                string
	Description         string
	ArgumentName        string
	ArgumentDescription string
	ArgumentRequired    bool
}

func SlashCommands() []SlashCommand {
	return []SlashCommand{
		{
			Name:                "trigger",
			Description:         "Reply when a message matches an expression",
			ArgumentName:        "rule",
			ArgumentDescription: "expression~response, e.g. coffee&(morning|early)~brewing",
			ArgumentRequired:    true,
		},
		{
			Name:                "thought",
			Description:         "Store a thought for this chat",
			ArgumentName:        "text",
			ArgumentDescription: "Thought text",
			ArgumentRequired:    true,
		},
		{
			Name:                "think",
			Description:         "Share a random stored thought",
			ArgumentName:        "target",
			ArgumentDescription: "Chat alias or id, defaults to this chat",
		},
		{
			Name:                "markov",
			Description:         "Generate a sentence from learned messages",
			ArgumentName:        "target",
			ArgumentDescription: "Chat alias or id, defaults to this chat",
		},
		{
			Name:                "alias",
			Description:         "Show or set this chat's alias",
			ArgumentName:        "name",
			ArgumentDescription: "New alias, one word",
		},
		{
			Name:                "stats",
			Description:         "Show trigger, thought and model counts",
			ArgumentName:        "target",
			ArgumentDescription: "Chat alias or id, defaults to this chat",
		},
		{
			Name:        "help",
			Description: "List commands",
		},
	}
}

func NormalizeCommandName(command string) string {
	normalized := strings.ToLower(strings.TrimSpace(command))
	if normalized == "" {
		return ""
	}
	return strings.ReplaceAll(normalized, "_", "-")
}

// HelpText renders SlashCommands as a plain text reply.
func HelpText() string {
	var builder strings.Builder
	builder.WriteString("Commands:")
	for _, command := range SlashCommands() {
		builder.WriteString("\n/")
		builder.WriteString(command.Name)
		if command.ArgumentName != "" {
			if command.ArgumentRequired {
				builder.WriteString(" <" + command.ArgumentName + ">")
			} else {
				builder.WriteString(" [" + command.ArgumentName + "]")
			}
		}
		builder.WriteString(" - ")
		builder.WriteString(command.Description)
	}
	return builder.String()
}
