package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// loadPromptFile reads ai.promptFile into ai.promptTemplate when a file is configured
func (c *Config) loadPromptFile() error {
	if c.AI.PromptFile == "" {
		if c.AI.PromptTemplate != "" {
			log.Println("[CONFIG] Prompt template: inline from configuration")
		} else {
			log.Println("[CONFIG] Prompt template: built-in default")
		}
		return nil
	}

	absPath, err := filepath.Abs(c.AI.PromptFile)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path for prompt file '%s': %w", c.AI.PromptFile, err)
	}
	c.AI.PromptFile = absPath

	content, err := ReadPromptFile(absPath)
	if err != nil {
		return err
	}

	c.AI.PromptTemplate = content
	log.Printf("[CONFIG] Successfully loaded prompt template from file: %s (%d characters)", absPath, len(content))
	return nil
}

// ReadPromptFile reads a template file and rejects missing or blank files.
// Placeholder checks belong to the prompt builder.
func ReadPromptFile(path string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("prompt file not found: %s", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt file '%s': %w", path, err)
	}

	if strings.TrimSpace(string(content)) == "" {
		return "", fmt.Errorf("prompt file '%s' is empty", path)
	}

	return string(content), nil
}
