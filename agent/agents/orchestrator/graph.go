package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	nodex "github.com/tanpawarit/chative-commerce-agent/agent/nodes"
)

const (
	nodeValidateRequest = "validate_request"
	nodeLoadSession     = "load_session"
	nodeCallModel       = "call_model"
	nodeValidateTool    = "validate_tool"
	nodeExecuteTool     = "execute_tool"
	nodeComposeReply    = "compose_reply"
	nodeFinalizeReply   = "finalize_reply"
	nodeSaveReply       = "save_reply"
)

func (o *Orchestrator) compileHandleMessageGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode(nodeValidateRequest,
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeValidateRequest, err)
	}

	stateNodes := []struct {
		name string
		fn   func(context.Context, *nodex.GraphState) (*nodex.GraphState, error)
	}{
		{nodeLoadSession, func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadSession(ctx, in, o.sessions)
		}},
		{nodeCallModel, func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.CallModel(ctx, in, o.responder, o.policy)
		}},
		{nodeValidateTool, func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ValidateTool(ctx, in, o.validator)
		}},
		{nodeExecuteTool, func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ExecuteTool(ctx, in, o.executor)
		}},
		{nodeComposeReply, func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ComposeReply(ctx, in, o.responder, o.policy)
		}},
		{nodeFinalizeReply, nodex.FinalizeReply},
	}
	for _, n := range stateNodes {
		if err := graph.AddLambdaNode(n.name, compose.InvokableLambda(n.fn)); err != nil {
			return nil, fmt.Errorf("add node %s: %w", n.name, err)
		}
	}

	if err := graph.AddLambdaNode(nodeSaveReply,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.SaveReply(ctx, in, o.sessions)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeSaveReply, err)
	}

	// A node that already decided the reply short-circuits to finalize_reply.
	branches := [][2]string{
		{nodeCallModel, nodeValidateTool},
		{nodeValidateTool, nodeExecuteTool},
		{nodeExecuteTool, nodeComposeReply},
	}
	for _, b := range branches {
		next := b[1]
		branch := compose.NewGraphBranch(
			func(ctx context.Context, in *nodex.GraphState) (string, error) {
				if in.HasReply() {
					return nodeFinalizeReply, nil
				}
				return next, nil
			},
			map[string]bool{
				next:              true,
				nodeFinalizeReply: true,
			},
		)
		if err := graph.AddBranch(b[0], branch); err != nil {
			return nil, fmt.Errorf("add branch after %s: %w", b[0], err)
		}
	}

	edges := [][2]string{
		{compose.START, nodeValidateRequest},
		{nodeValidateRequest, nodeLoadSession},
		{nodeLoadSession, nodeCallModel},
		{nodeComposeReply, nodeFinalizeReply},
		{nodeFinalizeReply, nodeSaveReply},
		{nodeSaveReply, compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.handle_message"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}
