package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// aiInstructionFiles are the instruction documents written into every
// scaffolded project.
var aiInstructionFiles = map[string]string{
	"AI_DOS_AND_DONTS.md": `# AI DO's and DON'Ts

## DO's
- Follow the project's coding standards and conventions
- Write clear, concise, well-documented code
- Use meaningful variable and function names
- Implement proper error handling and logging
- Write unit tests for your code
- Consider performance and security implications

## DON'Ts
- Don't hardcode sensitive information like API keys or passwords
- Don't ignore error handling
- Don't commit broken code
- Don't use deprecated libraries or functions
- Don't make breaking changes without proper communication
`,
	"AI_FIGMA_TO_CODE.md": `# AI Figma to Code Guidelines

## Process
1. Analyze the Figma design for layout, components, and interactions
2. Plan the component structure and identify reusable elements
3. Convert the design to clean, maintainable code
4. Verify the implementation against the design specification

## Principles
- Strive for an exact visual match with the design
- Ensure the implementation works across screen sizes
- Use semantic HTML for accessibility
- Break complex designs into reusable components
`,
	"AI_CODING_RULES.md": `# AI Coding Rules

## General Principles
1. Write code that is easy to read, understand, and maintain
2. Don't Repeat Yourself
3. Keep It Simple
4. Don't implement features until they're needed

## Error Handling
- Handle potential errors gracefully with meaningful messages
- Log errors with sufficient context
- Validate inputs

## Testing
- Write unit tests for business logic
- Test edge cases and error conditions
- Mock external dependencies
`,
}

// writeAIInstructionFiles writes the instruction templates into the
// project root. Returns the file names written.
func writeAIInstructionFiles(projectPath string) ([]string, error) {
	var written []string
	for name, content := range aiInstructionFiles {
		if err := os.WriteFile(filepath.Join(projectPath, name), []byte(content), 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", name, err)
		}
		written = append(written, name)
	}
	return written, nil
}

// writeBasicClaudeMD writes the static CLAUDE.md fallback used when the
// agent-driven /init fails.
func writeBasicClaudeMD(projectPath, projectName, repoURL string) error {
	content := fmt.Sprintf(`# CLAUDE.md

This file provides guidance to Claude Code (claude.ai/code) when working with code in this repository.

## Project Overview

This is a %s project created from %s.

## Important AI Instruction Files

When working on this project, always read and follow the guidelines in these files:

1. **AI_DOS_AND_DONTS.md** - General do's and don'ts for AI development
2. **AI_FIGMA_TO_CODE.md** - Guidelines for converting Figma designs to code
3. **AI_CODING_RULES.md** - Specific coding rules and standards for this project

These files contain mandatory instructions that take precedence over general coding practices.

## Development Commands

Please update this section with relevant build, test, and deployment commands for your project.
`, projectName, repoURL)

	return os.WriteFile(filepath.Join(projectPath, "CLAUDE.md"), []byte(content), 0o644)
}

// copySlashCommands copies resources/commands/*.md into
// .claude/commands. Success means at least one file was copied, or no
// template files existed to copy.
func copySlashCommands(resourcesDir, projectPath string) (copied int, ok bool, err error) {
	commandsDir := filepath.Join(projectPath, ".claude", "commands")
	if err := os.MkdirAll(commandsDir, 0o755); err != nil {
		return 0, false, err
	}

	sourceDir := filepath.Join(resourcesDir, "commands")
	entries, err := os.ReadDir(sourceDir)
	if os.IsNotExist(err) {
		return 0, true, nil
	}
	if err != nil {
		return 0, false, err
	}

	total := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		total++
		data, err := os.ReadFile(filepath.Join(sourceDir, entry.Name()))
		if err != nil {
			continue
		}
		if err := os.WriteFile(filepath.Join(commandsDir, entry.Name()), data, 0o644); err != nil {
			continue
		}
		copied++
	}

	return copied, copied > 0 || total == 0, nil
}

func splitLines(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}
