// Package llm adapts the provider-agnostic model.Client contract (the
// interface features/model/anthropic and features/model/bedrock
// implement) into an I/O edge that runs through the Recorder or Replay
// decorator, so any model.Client can back a deterministic adapter without
// modification.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/detcore/detcore/internal/adapter"
	"github.com/detcore/detcore/internal/recorder"
	"github.com/detcore/detcore/internal/telemetry"
	"github.com/detcore/detcore/runtime/agent/model"
)

// Client wraps a model.Client so every Complete call goes through an
// EdgeRunner, picking up fingerprinting, call_index assignment,
// started/finished events, and replay lookup for free.
type Client struct {
	Inner   model.Client
	Edges   adapter.EdgeRunner
	AgentID string
}

// Complete performs one LLM edge: the request is canonicalized and
// fingerprinted, call_index assigned per (agent_id, llm, model), and the
// live call proxied to Inner.Complete unless a replay decorator satisfies
// it from a recording.
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	edge := recorder.Edge{AgentID: c.AgentID, EdgeKind: telemetry.EdgeLLM, Name: modelName(req), Model: req.Model}
	result, err := c.Edges.Do(ctx, edge, req, func(ctx context.Context) (any, error) {
		return c.Inner.Complete(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	resp, ok := result.Output.(*model.Response)
	if ok {
		return resp, nil
	}
	// A replayed call widened the response through JSON; rebuild the typed
	// Response from the widened map so callers see the same shape they
	// would have from a live Inner.Complete.
	return decodeResponse(result.Output)
}

// Stream performs a streaming LLM edge. It drains Inner's stream inside a
// single edge and records the aggregate Response as the edge's terminal
// output (the llm_call.finished event). The individual chunks are not
// emitted as llm_call.chunk events. The returned Streamer serves the
// collected chunks or, on a replay hit, chunks rebuilt from the recorded
// Response.
func (c *Client) Stream(ctx context.Context, req *model.Request) (model.Streamer, error) {
	edge := recorder.Edge{AgentID: c.AgentID, EdgeKind: telemetry.EdgeLLM, Name: modelName(req), Model: req.Model}

	var chunks []model.Chunk
	result, err := c.Edges.Do(ctx, edge, req, func(ctx context.Context) (any, error) {
		stream, err := c.Inner.Stream(ctx, req)
		if err != nil {
			return nil, err
		}
		defer stream.Close()
		for {
			chunk, err := stream.Recv()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, chunk)
		}
		return aggregateChunks(chunks), nil
	})
	if err != nil {
		return nil, err
	}
	if len(chunks) > 0 {
		return &replayedStreamer{chunks: chunks}, nil
	}
	// A replay hit never calls fn, so chunks is still empty here; rebuild a
	// chunk sequence from the terminal aggregate Response instead.
	resp, ok := result.Output.(*model.Response)
	if !ok {
		resp, err = decodeResponse(result.Output)
		if err != nil {
			return nil, err
		}
	}
	return &replayedStreamer{chunks: disaggregateResponse(resp)}, nil
}

func modelName(req *model.Request) string {
	if req.Model != "" {
		return req.Model
	}
	if req.ModelClass != "" {
		return string(req.ModelClass)
	}
	return "default"
}

// replayedStreamer serves chunks already materialized by Stream, whether
// they came from a live call or a replayed one.
type replayedStreamer struct {
	chunks []model.Chunk
	pos    int
}

func (s *replayedStreamer) Recv() (model.Chunk, error) {
	if s.pos >= len(s.chunks) {
		return model.Chunk{}, io.EOF
	}
	c := s.chunks[s.pos]
	s.pos++
	return c, nil
}

func (s *replayedStreamer) Close() error { return nil }

func (s *replayedStreamer) Metadata() map[string]any { return nil }

// aggregateChunks folds a chunk sequence into the single Response a
// Recorder edge canonicalizes as its output, preserving the last-seen
// usage and stop reason.
func aggregateChunks(chunks []model.Chunk) *model.Response {
	resp := &model.Response{}
	for _, c := range chunks {
		if c.Message != nil {
			resp.Content = append(resp.Content, *c.Message)
		}
		if c.ToolCall != nil {
			resp.ToolCalls = append(resp.ToolCalls, *c.ToolCall)
		}
		if c.UsageDelta != nil {
			resp.Usage = *c.UsageDelta
		}
		if c.StopReason != "" {
			resp.StopReason = c.StopReason
		}
	}
	return resp
}

// disaggregateResponse is aggregateChunks' inverse, used when a replayed
// Stream has only the terminal Response and no recorded chunk events to
// replay verbatim: it yields one chunk per content message, one per tool
// call, and a final chunk carrying usage and stop reason.
func disaggregateResponse(resp *model.Response) []model.Chunk {
	var chunks []model.Chunk
	for i := range resp.Content {
		chunks = append(chunks, model.Chunk{Type: model.ChunkTypeText, Message: &resp.Content[i]})
	}
	for i := range resp.ToolCalls {
		chunks = append(chunks, model.Chunk{Type: model.ChunkTypeToolCall, ToolCall: &resp.ToolCalls[i]})
	}
	chunks = append(chunks, model.Chunk{Type: model.ChunkTypeStop, UsageDelta: &resp.Usage, StopReason: resp.StopReason})
	return chunks
}

// decodeResponse re-marshals a replayed call's widened output (a plain
// map[string]any produced by canon's JSON round trip) back to JSON bytes
// and unmarshals it into *model.Response, which routes each Message
// through its custom UnmarshalJSON instead of losing the typed Part union.
func decodeResponse(widened any) (*model.Response, error) {
	b, err := json.Marshal(widened)
	if err != nil {
		return nil, fmt.Errorf("llm: re-marshal replayed output: %w", err)
	}
	resp := &model.Response{}
	if err := json.Unmarshal(b, resp); err != nil {
		return nil, fmt.Errorf("llm: decode replayed response: %w", err)
	}
	return resp, nil
}
