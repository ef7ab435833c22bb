// File path: internal/prompt/systems.go
package prompt

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nicodishanthj/pentestgpt/internal/config"
)

// Names of the system prompt variants.
const (
	PentestGPTCurrentDateOnly = "pentestgptCurrentDateOnly"
	OpenAICurrentDateOnly     = "openaiCurrentDateOnly"
	RAG                       = "RAG"
	PGPT35WithTools           = "pgpt35WithTools"
	PentestGPTChat            = "pentestGPTChat"
	GPT4oWithTools            = "gpt4oWithTools"
	PentestGPTBrowser         = "pentestGPTBrowser"
	PentestGPTWebSearch       = "pentestGPTWebSearch"
)

// SystemPrompts holds every variant rendered for one point in time.
type SystemPrompts struct {
	// PentestGPTCurrentDateOnly seeds the standalone question generator.
	PentestGPTCurrentDateOnly string
	// OpenAICurrentDateOnly turns a user query into a tool command.
	OpenAICurrentDateOnly string
	RAG                   string
	PGPT35WithTools       string
	PentestGPTChat        string
	GPT4oWithTools        string
	PentestGPTBrowser     string
	PentestGPTWebSearch   string
}

// BuildSystemPrompts renders all variants from the configured seeds.
func BuildSystemPrompts(seeds config.Prompts, now time.Time) SystemPrompts {
	currentDate := "Current date: " + now.Format(dateLayout)
	seed := seeds.PentestGPT
	openURLs := InfoOptions{OpenURLs: true}
	return SystemPrompts{
		PentestGPTCurrentDateOnly: seed + "\n" + currentDate,
		OpenAICurrentDateOnly:     seeds.OpenAI + "\n" + currentDate,
		RAG:                       seed + " " + seeds.RAG + "\n" + currentDate,
		PGPT35WithTools:           Info(seed, openURLs, now) + "\n" + ToolsInfo(true, false) + "\n" + Ending,
		PentestGPTChat:            Info(seed, InfoOptions{}, now) + "\n" + Ending,
		GPT4oWithTools:            Info(seed, openURLs, now) + "\n" + ToolsInfo(true, true) + "\n" + Ending,
		PentestGPTBrowser:         Info(seed, openURLs, now) + "\n" + ToolsInfo(true, false) + "\n" + Ending,
		PentestGPTWebSearch:       Info(seed, InfoOptions{OmitKnowledgeCutoff: true, OpenURLs: true}, now) + "\n" + Ending,
	}
}

func (s SystemPrompts) byName() map[string]string {
	return map[string]string{
		PentestGPTCurrentDateOnly: s.PentestGPTCurrentDateOnly,
		OpenAICurrentDateOnly:     s.OpenAICurrentDateOnly,
		RAG:                       s.RAG,
		PGPT35WithTools:           s.PGPT35WithTools,
		PentestGPTChat:            s.PentestGPTChat,
		GPT4oWithTools:            s.GPT4oWithTools,
		PentestGPTBrowser:         s.PentestGPTBrowser,
		PentestGPTWebSearch:       s.PentestGPTWebSearch,
	}
}

// Lookup returns a variant by name, ignoring case.
func (s SystemPrompts) Lookup(name string) (string, error) {
	for key, value := range s.byName() {
		if strings.EqualFold(key, strings.TrimSpace(name)) {
			return value, nil
		}
	}
	return "", fmt.Errorf("unknown system prompt %q (known: %s)", name, strings.Join(Names(), ", "))
}

// Names lists the variant names in sorted order.
func Names() []string {
	names := make([]string, 0, 8)
	for key := range (SystemPrompts{}).byName() {
		names = append(names, key)
	}
	sort.Strings(names)
	return names
}
