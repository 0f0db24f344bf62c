package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/chative-commerce-agent/agent/contract"
)

//go:embed template/sales.txt
var salesRaw string

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Sales string
}

// LoadPromptSet returns the embedded prompts, trimmed.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Sales: strings.TrimSpace(salesRaw),
	}
}

// Validate rejects empty prompts and braces, which the FString template
// engine would treat as variables.
func (p PromptSet) Validate() error {
	if p.Sales == "" {
		return fmt.Errorf("%w: sales system instruction", contractx.ErrPromptMissing)
	}
	if strings.ContainsAny(p.Sales, "{}") {
		return fmt.Errorf("%w: sales system instruction must not contain braces", contractx.ErrPromptMissing)
	}
	return nil
}
