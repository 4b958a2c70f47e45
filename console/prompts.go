package console

import "git.sr.ht/~aondrejcak/policy-console/models"

const Greeting = "👋 Hello! I'm your AI Policy Assistant. I can help you:\n\n" +
	"• 📋 **View policies**: 'Show me all HR policies'\n" +
	"• ➕ **Create policies**: 'Add a new IT policy called Security Guidelines'\n" +
	"• 🔍 **Search policies**: 'Find policies about remote work'\n" +
	"• ✏️ **Update policies**: 'Update the leave policy'\n" +
	"• 📊 **Get statistics**: 'Show me policy statistics'\n\n" +
	"**Try saying**: *'Add a new HR policy called Test Policy for All Employees about remote work guidelines'*"

type QuickAction struct {
	Key    string
	Label  string
	Prompt string
}

var QuickActions = []QuickAction{
	{Key: "all", Label: "📋 Show All Policies", Prompt: "Show me all policies"},
	{Key: "create", Label: "➕ Create Test Policy", Prompt: "Add a new HR policy called 'Quick Test Policy' for All Employees about testing the system"},
	{Key: "hr", Label: "🏢 HR Policies", Prompt: "Show me all HR policies"},
	{Key: "stats", Label: "📊 Statistics", Prompt: "Show me policy statistics"},
}

func QuickPrompt(key string) (string, bool) {
	for _, qa := range QuickActions {
		if qa.Key == key {
			return qa.Prompt, true
		}
	}
	return "", false
}

type ExampleGroup struct {
	Title    string
	Examples []string
}

var ExampleCommands = []ExampleGroup{
	{Title: "Create Policies", Examples: []string{
		"Add a new HR policy called 'Remote Work Guidelines' for All Employees",
		"Create an IT policy about password security for IT Department",
		"Add a Customer policy called 'Service Standards' for Customer Service Team",
	}},
	{Title: "View Policies", Examples: []string{
		"Show me all policies",
		"List all HR policies",
		"Find policies about security",
	}},
	{Title: "Get Information", Examples: []string{
		"How many policies do we have?",
		"Show me expired policies",
		"What's the system status?",
	}},
}

// Transcript is the greeting followed by the stored messages.
func Transcript(stored []models.ChatMessage) []models.ChatMessage {
	out := []models.ChatMessage{{Role: models.ROLE_ASSISTANT, Content: Greeting}}
	return append(out, stored...)
}
