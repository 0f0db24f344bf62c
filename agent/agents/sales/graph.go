package sales

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

const (
	varHistory    = "history"
	varInput      = "input"
	varScratchpad = "scratchpad"
)

// compileModelGraph wires system prompt, replayed history, the user turn and
// an optional tool scratchpad into a single model call.
func compileModelGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.MessagesPlaceholder(varHistory, true),
		schema.UserMessage("{"+varInput+"}"),
		schema.MessagesPlaceholder(varScratchpad, true),
	)

	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add sales prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add sales model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add sales edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add sales edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add sales edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("sales.model_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile sales model graph: %w", err)
	}
	return runner, nil
}
