package client

import (
	"context"
	"fmt"

	"coassign/pkg/api/matchingv1"
	"coassign/pkg/domain"
)

// MatchingClient клиент для solver-svc
type MatchingClient struct {
	conn   interface{ Close() error }
	client matchingv1.MatchingServiceClient
}

// NewMatchingClient создаёт нового клиента
func NewMatchingClient(cfg *ClientConfig) (*MatchingClient, error) {
	if cfg == nil {
		cfg = DefaultClientConfig()
	}

	conn, err := NewGRPCClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to solver service: %w", err)
	}

	return &MatchingClient{
		conn:   conn,
		client: matchingv1.NewMatchingServiceClient(conn),
	}, nil
}

// Close закрывает соединение
func (c *MatchingClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Solve отправляет граф на решение
func (c *MatchingClient) Solve(ctx context.Context, g *domain.BipartiteGraph, opts *matchingv1.SolveOptions, tags ...string) (*matchingv1.SolveResponse, error) {
	req := RequestFromGraph(g)
	req.Options = opts
	req.Tags = tags

	resp, err := c.client.Solve(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("solve request failed: %w", err)
	}
	return resp, nil
}

// GenerateAndSolve просит сервис сгенерировать случайный граф и решить его
func (c *MatchingClient) GenerateAndSolve(ctx context.Context, p domain.RandomParams, seed int64, opts *matchingv1.SolveOptions) (*matchingv1.SolveResponse, error) {
	resp, err := c.client.GenerateAndSolve(ctx, &matchingv1.GenerateRequest{
		LSize:             matchingv1.Range(p.LSize),
		RSize:             matchingv1.Range(p.RSize),
		LeftMultiplicity:  matchingv1.Range(p.LeftMultiplicity),
		RightMultiplicity: matchingv1.Range(p.RightMultiplicity),
		Weight:            matchingv1.Range(p.Weight),
		Density:           p.Density,
		Seed:              seed,
		Options:           opts,
	})
	if err != nil {
		return nil, fmt.Errorf("generate request failed: %w", err)
	}
	return resp, nil
}

// GetRun возвращает запись истории
func (c *MatchingClient) GetRun(ctx context.Context, runID string) (*matchingv1.RunRecord, error) {
	return c.client.GetRun(ctx, &matchingv1.GetRunRequest{RunID: runID})
}

// ListRuns возвращает страницу истории
func (c *MatchingClient) ListRuns(ctx context.Context, req *matchingv1.ListRunsRequest) (*matchingv1.ListRunsResponse, error) {
	return c.client.ListRuns(ctx, req)
}

// RequestFromGraph переводит граф в запрос в исходной ориентации
func RequestFromGraph(g *domain.BipartiteGraph) *matchingv1.SolveRequest {
	l, r := g.OriginalSizes()
	edges := g.Edges()

	req := &matchingv1.SolveRequest{
		LSize:               l,
		RSize:               r,
		Edges:               make([]matchingv1.Edge, len(edges)),
		LeftMultiplicities:  g.LeftMultiplicities(),
		RightMultiplicities: g.RightMultiplicities(),
	}
	for i, e := range edges {
		req.Edges[i] = matchingv1.Edge{Left: e.Left, Right: e.Right, Weight: e.Weight}
	}
	return req
}
