package runner

import (
	"fmt"
	"strings"

	"conductor/internal/metadata"
	"conductor/internal/tools"
)

const fence = "```"

const basePrompt = `You are a coding assistant working in the user's workspace.
Answer directly and concisely. Use tools when you need facts you do not have.`

// buildSystemPrompt lists the tools of this request, the call syntax and
// the metadata shape the controller understands.
func buildSystemPrompt(descs []tools.Descriptor, mode tools.Mode) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\n")

	if mode.AllowsWrite() {
		b.WriteString("MODE: agent. You may change files and run commands.\n")
	} else {
		b.WriteString("MODE: ask (read-only). Tools marked unavailable will be refused; do not propose file changes.\n")
	}

	if len(descs) > 0 {
		b.WriteString("\nTOOLS\n")
		for _, d := range descs {
			fmt.Fprintf(&b, "- %s: %s", d.Usage(), d.Description)
			if d.Kind.Mutating() && !mode.AllowsWrite() {
				b.WriteString(" (unavailable in ask mode)")
			}
			b.WriteString("\n")
		}
		b.WriteString("\nTo call a tool, write exactly one line per call:\n")
		b.WriteString(`<tool_call name="read_file" args='{"path": "main.go"}' />`)
		b.WriteString("\nResults come back in the next message. Do not describe a call you intend to make; make it.\n")
	}

	b.WriteString("\nPLAN AND FILE CHANGES\n")
	b.WriteString("For multi-step work, or when files must change, end the reply with one block:\n")
	b.WriteString(fence + "json\n")
	b.WriteString(`{"ai_plan": {"summary": "...", "tasks": [{"id": "t1", "title": "...", "status": "pending", "dependsOn": []}]},`)
	b.WriteString("\n")
	b.WriteString(` "file_operations": [{"type": "create_file", "path": "...", "content": "..."}, {"type": "edit_file", "path": "...", "before": "...", "after": "..."}, {"type": "delete_file", "path": "..."}]}`)
	b.WriteString("\n" + fence + "\n")
	b.WriteString("Task status is one of pending, in_progress, completed, blocked.")
	if !mode.AllowsWrite() {
		b.WriteString(" Omit file_operations in ask mode.")
	}
	return b.String()
}

func userSection(req Request) string {
	var b strings.Builder
	if ctx := strings.TrimSpace(req.Context); ctx != "" {
		b.WriteString("CONTEXT:\n")
		b.WriteString(ctx)
		b.WriteString("\n\n")
	}
	b.WriteString("USER:\n")
	b.WriteString(strings.TrimSpace(req.Message))
	return b.String()
}

func initialPrompt(system string, req Request) string {
	return system + "\n\n" + userSection(req)
}

// followupPrompt appends the assistant reply and the formatted tool results
// to the prompt that produced them.
func followupPrompt(prev, reply, results string) string {
	var b strings.Builder
	b.WriteString(prev)
	if reply = strings.TrimSpace(reply); reply != "" {
		b.WriteString("\n\nASSISTANT:\n")
		b.WriteString(reply)
	}
	b.WriteString("\n\n")
	b.WriteString(results)
	return b.String()
}

func continuationPrompt(system string, req Request, plan *metadata.Plan, progress string) string {
	var b strings.Builder
	b.WriteString(initialPrompt(system, req))
	if progress = strings.TrimSpace(progress); progress != "" {
		b.WriteString("\n\nPROGRESS SO FAR:\n")
		b.WriteString(progress)
	}
	b.WriteString("\n\nCURRENT PLAN:\n")
	b.WriteString(plan.String())
	b.WriteString("\n\nContinue with the next pending task. Report updated task statuses in ai_plan.")
	return b.String()
}

func regenerationPrompt(system string, req Request, previous string) string {
	var b strings.Builder
	b.WriteString(initialPrompt(system, req))
	if previous = strings.TrimSpace(previous); previous != "" {
		b.WriteString("\n\nYOUR PREVIOUS ANSWER:\n")
		b.WriteString(previous)
	}
	b.WriteString("\n\nThe previous answer did not contain concrete file operations. ")
	b.WriteString("Reply with a single " + fence + "json block of the form ")
	b.WriteString(`{"file_operations": [...]}`)
	b.WriteString(" listing every file to create, edit or delete, with full content or exact before/after text. No prose.")
	return b.String()
}

func searchFallbackPrompt(system string, req Request, previous string) string {
	var b strings.Builder
	b.WriteString(initialPrompt(system, req))
	if previous = strings.TrimSpace(previous); previous != "" {
		b.WriteString("\n\nYOUR PREVIOUS ANSWER WAS UNCERTAIN:\n")
		b.WriteString(previous)
	}
	b.WriteString("\n\nA web search was run for you. Answer the question again using its results.")
	return b.String()
}
